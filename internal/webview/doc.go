// Package webview connects the blocker to a web view.
//
// A web view host calls Bridge.OnPageLoaded after every finished page
// load. The bridge maps the URL to a catalogue site, generates the script
// for the user's enabled features and hands it to an Executor, the host's
// "run this JavaScript in the page" capability. Nothing is executed for
// unknown hosts or when the script is empty.
//
// RodSession is an Executor backed by headless Chrome through go-rod. It is
// used to preview the effect of a selection on a live page.
package webview
