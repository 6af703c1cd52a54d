// Package model turns a plain property/method definition into a live,
// observable model.
//
// A model is built from a Def (or just its Props). Every plain prop becomes
// an observable field, every Method becomes a bound method, and private
// props (prefixed with one of _ # ! ~ & * %) are kept verbatim:
//
//	counter := model.Create(model.Props{
//	    "count": 1,
//	    "increment": func(m *model.Model, _ ...any) any {
//	        m.Set("count", m.Int("count")+1)
//	        return nil
//	    },
//	})
//	unsubscribe := counter.Listen(func() { fmt.Println(counter.Get("count")) })
//	counter.Invoke("increment") // prints 2
//
// # Batching
//
// Method calls, Batch and Merge coalesce every write made inside them into a
// single change notification, fired when the outermost call returns. Writes
// made outside a call notify immediately.
//
// # Families
//
// A Def with a Key is a family root. Family(key) returns the member for that
// key, creating it from the root template on first use:
//
//	todos := model.New(model.Def{Props: model.Props{"id": 0, "title": ""}, Key: "id"})
//	todo := todos.Family(42)
//	todo.Remove()
//
// # Thread Safety
//
// A model serializes access with a goroutine-reentrant lock, so methods may
// call back into their own model, and async completions arriving on other
// goroutines (loaders, debounced calls) are applied one at a time. Listeners
// and observers run synchronously on the goroutine that committed the change.
package model
