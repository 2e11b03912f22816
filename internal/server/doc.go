// Package server exposes quietfeed over HTTP for a web-view host.
//
// The host fetches the blocking script for a site after each page load,
// or posts the loaded URL and receives the script to execute. The same API
// reads and changes the enabled-feature selection, so a settings screen
// and the injector share one Service.
//
//	GET    /healthz
//	GET    /v1/sites
//	GET    /v1/sites/{site}
//	GET    /v1/sites/{site}/script[?features=a,b]
//	GET    /v1/sites/{site}/features
//	PUT    /v1/sites/{site}/features
//	DELETE /v1/sites/{site}/features
//	POST   /v1/sites/{site}/features/{feature}/toggle
//	POST   /v1/page-loaded
//
// Errors are JSON objects of the form {"error": "..."}.
package server
