// Package arbor is a file-tree-driven web application engine.
//
// A directory on disk is compiled into a routing tree: directories become
// path segments, markdown files become rendered documents, Lua files
// become executable handler modules, bracketed names capture path
// parameters, and reserved _hook.lua / _error.lua files attach middleware
// and error handlers to whole subtrees.
//
//	app, err := arbor.New(arbor.Config{Root: "site"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	http.ListenAndServe(":8080", app)
//
// The routing tree is immutable and shared by all in-flight requests.
// File changes invalidate loaded modules and debounce a full
// rebuild-and-swap of the tree; requests that started on the old tree
// finish against it.
package arbor
