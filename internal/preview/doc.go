// Package preview serves the displayed document to a browser and pushes
// every update over a websocket so the page reloads itself.
//
// Routes:
//
//	GET  /         viewer page
//	GET  /content  current document HTML (ETag is the xxhash of the page)
//	GET  /status   current status as JSON
//	GET  /ws       websocket stream of content and status messages
//	POST /open     form value "path" opens another document; empty cancels
package preview
