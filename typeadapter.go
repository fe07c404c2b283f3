package dynobj

// objectImpl is the capability interface the engine's single
// process-wide type adapter dispatches every verb through, matching
// original_source's DynamicObjectTypeInterface: one vtable shared by
// every DynamicObject instance, late-bound on the instance pointer it
// is handed rather than carrying per-instance virtual dispatch
// (spec.md §9, "Late-bound dispatch"). *DynamicObject implements this
// directly; the adapter below takes a *DynamicObject and forwards each
// verb to that instance's objectImpl method.
type objectImpl interface {
	metaObject() *MetaObject
	metaCall(ctx Context, methodID uint32, params []AnyValue, callType MetaCallType) Future[AnyValue]
	metaPost(ctx Context, eventID uint32, params []AnyValue)
	connect(eventID uint32, subscriber Subscriber) Future[SignalLink]
	disconnect(link SignalLink) Future[struct{}]
	property(id uint32) Future[AnyValue]
	setProperty(id uint32, val AnyValue) Future[struct{}]
	// parentTypes mirrors original_source's type-hierarchy introspection
	// vtable slot. This engine has no type-hierarchy concept, so every
	// DynamicObject reports none.
	parentTypes() []string
}

func (o *DynamicObject) metaObject() *MetaObject { return o.MetaObject() }

func (o *DynamicObject) parentTypes() []string { return nil }

func (o *DynamicObject) metaCall(ctx Context, methodID uint32, params []AnyValue, callType MetaCallType) Future[AnyValue] {
	return o.MetaCall(ctx, methodID, params, callType)
}

func (o *DynamicObject) metaPost(ctx Context, eventID uint32, params []AnyValue) {
	o.MetaPost(ctx, eventID, params)
}

func (o *DynamicObject) connect(eventID uint32, subscriber Subscriber) Future[SignalLink] {
	return o.MetaConnect(eventID, subscriber)
}

func (o *DynamicObject) disconnect(link SignalLink) Future[struct{}] {
	return o.MetaDisconnect(link)
}

func (o *DynamicObject) property(id uint32) Future[AnyValue] {
	return o.MetaProperty(id)
}

func (o *DynamicObject) setProperty(id uint32, val AnyValue) Future[struct{}] {
	return o.MetaSetProperty(id, val)
}

// dynamicObjectAdapter is the process-wide objectImpl singleton: a
// stateless vtable that forwards every call to whichever instance it
// is handed, mirroring original_source's single static
// DynamicObjectTypeInterface instance shared by every qi::Object
// wrapping a DynamicObject.
type dynamicObjectAdapter struct{}

var theDynamicObjectAdapter = dynamicObjectAdapter{}

func (dynamicObjectAdapter) metaObjectOf(o *DynamicObject) *MetaObject { return o.metaObject() }

func (dynamicObjectAdapter) metaCallOn(o *DynamicObject, ctx Context, methodID uint32, params []AnyValue, callType MetaCallType) Future[AnyValue] {
	return o.metaCall(ctx, methodID, params, callType)
}

func (dynamicObjectAdapter) metaPostOn(o *DynamicObject, ctx Context, eventID uint32, params []AnyValue) {
	o.metaPost(ctx, eventID, params)
}

func (dynamicObjectAdapter) connectOn(o *DynamicObject, eventID uint32, subscriber Subscriber) Future[SignalLink] {
	return o.connect(eventID, subscriber)
}

func (dynamicObjectAdapter) disconnectOn(o *DynamicObject, link SignalLink) Future[struct{}] {
	return o.disconnect(link)
}

func (dynamicObjectAdapter) propertyOn(o *DynamicObject, id uint32) Future[AnyValue] {
	return o.property(id)
}

func (dynamicObjectAdapter) setPropertyOn(o *DynamicObject, id uint32, val AnyValue) Future[struct{}] {
	return o.setProperty(id, val)
}

func (dynamicObjectAdapter) parentTypesOf(o *DynamicObject) []string { return o.parentTypes() }
