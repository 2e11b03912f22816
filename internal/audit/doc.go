// Package audit applies blocking rules to saved HTML documents.
//
// The auditor mirrors the DOM semantics of the generated scripts with
// goquery, so a rule set can be checked against a page snapshot without a
// browser: Evaluate counts what each rule would remove, Reconcile performs
// the removal, and Auditor.AuditFiles runs both over many files concurrently.
//
// Reconcile is idempotent. A second pass over a reconciled document removes
// nothing and leaves the rendered HTML unchanged, which is the property the
// in-page script relies on when its three triggers fire repeatedly.
package audit
