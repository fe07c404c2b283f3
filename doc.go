// Package dynobj implements the dynamic object dispatch engine of a
// distributed robotics middleware: a runtime-mutable object model whose
// methods, signals, and properties are discovered by numeric id, reachable
// through four verbs (call, post, connect, disconnect) plus property
// get/set, and dispatched through a single decision point that chooses
// between synchronous and queued execution and decides whether to
// serialize concurrent calls under a per-object lock.
//
// Basic usage:
//
//	meta := dynobj.NewMetaObject()
//	meta.AddMethod(100, "add", "(ii)", "i")
//	obj := dynobj.NewDynamicObject()
//	obj.SetMetaObject(meta)
//	obj.SetMethod(100, dynobj.NewFunction(func(params []dynobj.AnyValue) (dynobj.AnyValue, error) {
//		return dynobj.From(params[1].Value().(int) + params[2].Value().(int)), nil
//	}), dynobj.MetaCallAuto)
//	fut := obj.MetaCall(ctx, 100, []dynobj.AnyValue{dynobj.From(3), dynobj.From(4)}, dynobj.MetaCallAuto)
package dynobj
