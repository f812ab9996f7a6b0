// Package registry is a concurrency-safe, ordered name-to-value registry.
//
// The CLI uses it as its workflow catalog:
//
//	catalog := registry.New[string, Workflow]()
//	catalog.MustRegister("roots", rootsWorkflow)
//
//	for name, wf := range catalog.All() {
//	    fmt.Println(name, wf.Description)
//	}
//
// Keys are kept sorted so listings are stable. Registering a key twice is an
// error; use Replace to overwrite deliberately.
package registry
