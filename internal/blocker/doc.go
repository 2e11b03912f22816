// Package blocker generates the JavaScript that hides features of a site
// inside an embedded web view.
//
// For a site and its enabled features the generator emits one self-invoking
// script that:
//   - defines a procedure per catalogue rule,
//   - defines applyAll, which invokes every procedure,
//   - runs applyAll once after a short delay,
//   - re-runs it from a MutationObserver on the document root,
//   - re-runs it on a fixed interval as a fallback.
//
// Removing an element that is already gone is a no-op, so all three
// triggers converge on the same page state. Errors are swallowed per rule,
// per applyAll batch and around the whole wrapper.
//
// Generation is pure: the same site and enabled set always produce the same
// bytes, and an empty set produces "".
//
// # Usage
//
//	script := blocker.Generate("instagram", []string{"reels", "stories"})
//	if script != "" {
//	    webView.EvaluateJavaScript(script)
//	}
package blocker
