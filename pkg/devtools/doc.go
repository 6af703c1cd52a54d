// Package devtools records the activity of named models and serves it over
// HTTP and websockets, with time travel to any recorded state.
//
// Models opt in with the model.NameProp prop:
//
//	hub := devtools.NewHub()
//	model.Inject(hub.Injector())
//	cart := model.Create(model.Props{model.NameProp: "cart", "items": 0})
//
//	go hub.ListenAndServe(ctx, "localhost:7357", nil)
//
// Every call, write and family removal becomes an Action named like
// "cart:call:add" or "todo[]:write:done:true", carrying the state of all
// registered models after it. Jumping to an action merges its state back
// into the models; family members missing from it are removed.
package devtools
