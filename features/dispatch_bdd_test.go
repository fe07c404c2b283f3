package features

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/cucumber/godog"

	"github.com/GoCodeAlone/dynobj"
)

// dispatchWorld holds the scenario-scoped state each step reads and
// writes, one instance created fresh per Scenario via godog's
// ScenarioContext.Before hook.
type dispatchWorld struct {
	t   *testing.T
	obj *dynobj.DynamicObject
	ctx *dynobj.StdContext

	result dynobj.Future[dynobj.AnyValue]
	err    error

	mu          sync.Mutex
	subscriberA []dynobj.AnyValue
	subscriberACalls int
	subscriberB []dynobj.AnyValue
	subscriberBCalls int
	link        dynobj.SignalLink
	secondLink  dynobj.SignalLink

	concurrentResults []error
	concurrentMu      sync.Mutex

	traceSubject *dynobj.TraceSubject
	traceEvents  []dynobj.EventTraceKind
	traceIDs     []string
}

func (w *dispatchWorld) anObjectWithMethodBoundTo(methodID int, expr string) error {
	meta := dynobj.NewMetaObject()
	meta.AddMethod(uint32(methodID), "m", "(ii)", "i")
	w.obj = dynobj.NewDynamicObject()
	w.obj.SetMetaObject(meta)
	w.obj.SetMethod(uint32(methodID), dynobj.NewFunction(func(params []dynobj.AnyValue) (dynobj.AnyValue, error) {
		a := params[1].Value().(int)
		b := params[2].Value().(int)
		return dynobj.From(a + b), nil
	}), dynobj.MetaCallAuto)
	w.obj.SetThreadingModel(dynobj.ObjectThreadingModelSingleThread)
	w.ctx = dynobj.NewStdContext(nil, false, false, nil)
	return nil
}

func (w *dispatchWorld) iCallMethodWithArgumentsAndOutsideItsEventLoop(methodID, a, b int) error {
	w.result = w.obj.MetaCall(w.ctx, uint32(methodID), []dynobj.AnyValue{dynobj.From(a), dynobj.From(b)}, dynobj.MetaCallAuto)
	return nil
}

func (w *dispatchWorld) iCallMethodWithNoArguments(methodID int) error {
	w.result = w.obj.MetaCall(w.ctx, uint32(methodID), nil, dynobj.MetaCallAuto)
	return nil
}

func (w *dispatchWorld) theCallResolvesTo(expected int) error {
	v, err := w.result.Value()
	if err != nil {
		return fmt.Errorf("expected success, got error: %w", err)
	}
	if v.Value().(int) != expected {
		return fmt.Errorf("expected %d, got %v", expected, v.Value())
	}
	return nil
}

func (w *dispatchWorld) theCallFailsWithAMessageStartingWith(prefix string) error {
	_, err := w.result.Value()
	if err == nil {
		return fmt.Errorf("expected failure, call succeeded")
	}
	if !strings.HasPrefix(err.Error(), prefix) {
		return fmt.Errorf("expected error prefix %q, got %q", prefix, err.Error())
	}
	return nil
}

func (w *dispatchWorld) anObjectWithPropertyOfSignature(propID int, sig string) error {
	meta := dynobj.NewMetaObject()
	meta.AddProperty(uint32(propID), "p", sig)
	w.obj = dynobj.NewDynamicObject()
	w.obj.SetMetaObject(meta)
	w.ctx = dynobj.NewStdContext(nil, false, false, nil)
	return nil
}

func (w *dispatchWorld) twoSubscribersConnectedToSignal(signalID int) error {
	fa := w.obj.MetaConnect(uint32(signalID), func(params []dynobj.AnyValue) {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.subscriberA = params
		w.subscriberACalls++
	})
	if _, err := fa.Value(); err != nil {
		return err
	}
	fb := w.obj.MetaConnect(uint32(signalID), func(params []dynobj.AnyValue) {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.subscriberB = params
		w.subscriberBCalls++
	})
	_, err := fb.Value()
	return err
}

func (w *dispatchWorld) iSetPropertyTo(propID, value int) error {
	_, err := w.obj.MetaSetProperty(uint32(propID), dynobj.From(value)).Value()
	return err
}

func (w *dispatchWorld) iSetPropertyToAgain(propID, value int) error {
	return w.iSetPropertyTo(propID, value)
}

func (w *dispatchWorld) bothSubscribersWereInvokedTwiceWith(value int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.subscriberACalls != 2 || w.subscriberBCalls != 2 {
		return fmt.Errorf("expected both subscribers called twice, got a=%d b=%d", w.subscriberACalls, w.subscriberBCalls)
	}
	if len(w.subscriberA) != 1 || w.subscriberA[0].Value().(int) != value {
		return fmt.Errorf("subscriber A did not see %d", value)
	}
	if len(w.subscriberB) != 1 || w.subscriberB[0].Value().(int) != value {
		return fmt.Errorf("subscriber B did not see %d", value)
	}
	return nil
}

func (w *dispatchWorld) anObjectWithSignalDeclared(signalID int) error {
	meta := dynobj.NewMetaObject()
	meta.AddSignal(uint32(signalID), "s", "(s)")
	w.obj = dynobj.NewDynamicObject()
	w.obj.SetMetaObject(meta)
	w.ctx = dynobj.NewStdContext(nil, false, false, nil)
	return nil
}

func (w *dispatchWorld) aSubscriberConnectedToSignalYieldingLinkL(signalID int) error {
	f := w.obj.MetaConnect(uint32(signalID), func(params []dynobj.AnyValue) {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.subscriberA = params
		w.subscriberACalls++
	})
	link, err := f.Value()
	if err != nil {
		return err
	}
	w.link = link
	return nil
}

func (w *dispatchWorld) iPostToSignal(value string, signalID int) error {
	w.obj.MetaPost(w.ctx, uint32(signalID), []dynobj.AnyValue{dynobj.From(value)})
	return nil
}

func (w *dispatchWorld) iDisconnectLinkL() error {
	_, err := w.obj.MetaDisconnect(w.link).Value()
	return err
}

func (w *dispatchWorld) theSubscriberSawExactlyOnce(value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.subscriberACalls != 1 {
		return fmt.Errorf("expected exactly one delivery, got %d", w.subscriberACalls)
	}
	if w.subscriberA[0].Value().(string) != value {
		return fmt.Errorf("expected subscriber to see %q", value)
	}
	return nil
}

func (w *dispatchWorld) theSubscriberNeverSaw(value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.subscriberACalls != 1 {
		return fmt.Errorf("subscriber was invoked more than once, cannot assert it never saw %q", value)
	}
	return nil
}

func (w *dispatchWorld) disconnectingLinkLAgainFails() error {
	_, err := w.obj.MetaDisconnect(w.link).Value()
	if err == nil {
		return fmt.Errorf("expected second disconnect to fail")
	}
	return nil
}

func (w *dispatchWorld) anObjectWithMethodWhoseCallableSleepsAsSingleThreadAuto(methodID, ms int) error {
	meta := dynobj.NewMetaObject()
	meta.AddMethod(uint32(methodID), "slow", "()", "v")
	w.obj = dynobj.NewDynamicObject()
	w.obj.SetMetaObject(meta)
	w.obj.SetMethod(uint32(methodID), dynobj.NewFunction(func(params []dynobj.AnyValue) (dynobj.AnyValue, error) {
		time.Sleep(time.Duration(ms) * time.Millisecond)
		return dynobj.From("done"), nil
	}), dynobj.MetaCallAuto)
	w.obj.SetThreadingModel(dynobj.ObjectThreadingModelSingleThread)
	return nil
}

func (w *dispatchWorld) theDeadlockTimeoutIs(ms int) error {
	cfg := dynobj.DefaultConfig()
	cfg.DeadlockTimeout = time.Duration(ms) * time.Millisecond
	w.obj.SetDispatcher(dynobj.NewDispatcher(cfg))
	w.ctx = dynobj.NewStdContext(nil, false, false, nil)
	return nil
}

func (w *dispatchWorld) iCallMethodTwiceConcurrently(methodID int) error {
	w.concurrentResults = make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		i := i
		go func() {
			defer wg.Done()
			_, err := w.obj.MetaCall(w.ctx, uint32(methodID), nil, dynobj.MetaCallAuto).Value()
			w.concurrentMu.Lock()
			w.concurrentResults[i] = err
			w.concurrentMu.Unlock()
		}()
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()
	return nil
}

func (w *dispatchWorld) theFirstCallResolvesNormally() error {
	if w.concurrentResults[0] != nil {
		return fmt.Errorf("expected first call to succeed, got %v", w.concurrentResults[0])
	}
	return nil
}

func (w *dispatchWorld) theSecondCallFailsWith(msg string) error {
	if w.concurrentResults[1] == nil {
		return fmt.Errorf("expected second call to fail")
	}
	if w.concurrentResults[1].Error() != msg {
		return fmt.Errorf("expected message %q, got %q", msg, w.concurrentResults[1].Error())
	}
	return nil
}

func (w *dispatchWorld) anObjectWithMethodWhoseCallableFailsWith(methodID int, msg string) error {
	meta := dynobj.NewMetaObject()
	meta.AddMethod(uint32(methodID), "bad", "()", "v")
	w.obj = dynobj.NewDynamicObject()
	w.obj.SetMetaObject(meta)
	w.obj.SetMethod(uint32(methodID), dynobj.NewFunction(func(params []dynobj.AnyValue) (dynobj.AnyValue, error) {
		return dynobj.AnyValue{}, fmt.Errorf("%s", msg)
	}), dynobj.MetaCallAuto)
	return nil
}

func (w *dispatchWorld) traceIsEnabledOnTheCallingContext() error {
	w.traceSubject = dynobj.NewTraceSubject("bdd-object")
	w.traceSubject.RegisterObserver(dynobj.NewFunctionalTraceObserver("bdd-observer", func(ctx context.Context, e cloudevents.Event) error {
		w.mu.Lock()
		switch e.Type() {
		case dynobj.EventTypeCall:
			w.traceEvents = append(w.traceEvents, dynobj.EventTraceCall)
			w.traceIDs = append(w.traceIDs, fmt.Sprint(e.Extensions()["tracerid"]))
		case dynobj.EventTypeError:
			w.traceEvents = append(w.traceEvents, dynobj.EventTraceError)
			w.traceIDs = append(w.traceIDs, fmt.Sprint(e.Extensions()["tracerid"]))
		}
		w.mu.Unlock()
		return nil
	}))
	w.ctx = dynobj.NewStdContext(nil, false, true, w.traceSubject)
	return nil
}

func (w *dispatchWorld) theCallFailsWith(msg string) error {
	_, err := w.result.Value()
	if err == nil {
		return fmt.Errorf("expected failure")
	}
	if err.Error() != msg {
		return fmt.Errorf("expected %q, got %q", msg, err.Error())
	}
	return nil
}

func (w *dispatchWorld) theContextRecordedACallEventAndAMatchingErrorEventSharingOneTraceID() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var sawCall, sawError bool
	var callID, errorID string
	for i, k := range w.traceEvents {
		switch k {
		case dynobj.EventTraceCall:
			sawCall = true
			callID = w.traceIDs[i]
		case dynobj.EventTraceError:
			sawError = true
			errorID = w.traceIDs[i]
		}
	}
	if !sawCall || !sawError {
		return fmt.Errorf("expected both a Call and an Error trace event, got %v", w.traceEvents)
	}
	if callID != errorID {
		return fmt.Errorf("expected Call and Error events to share one trace id, got %s and %s", callID, errorID)
	}
	return nil
}

func InitializeScenario(sc *godog.ScenarioContext) {
	var w *dispatchWorld
	sc.Before(func(ctx context.Context, scenario *godog.Scenario) (context.Context, error) {
		w = &dispatchWorld{}
		return ctx, nil
	})

	sc.Step(`^an object with method (\d+) bound to "([^"]*)" as SingleThread/Auto$`, func(id int, expr string) error {
		return w.anObjectWithMethodBoundTo(id, expr)
	})
	sc.Step(`^I call method (\d+) with arguments (\d+) and (\d+) outside its event loop$`, func(id, a, b int) error {
		return w.iCallMethodWithArgumentsAndOutsideItsEventLoop(id, a, b)
	})
	sc.Step(`^I call method (\d+) with no arguments$`, func(id int) error {
		return w.iCallMethodWithNoArguments(id)
	})
	sc.Step(`^the call resolves to (\d+)$`, func(v int) error {
		return w.theCallResolvesTo(v)
	})
	sc.Step(`^the call fails with a message starting with "([^"]*)"$`, func(prefix string) error {
		return w.theCallFailsWithAMessageStartingWith(prefix)
	})
	sc.Step(`^an object with property (\d+) of signature "([^"]*)"$`, func(id int, sig string) error {
		return w.anObjectWithPropertyOfSignature(id, sig)
	})
	sc.Step(`^two subscribers connected to signal (\d+)$`, func(id int) error {
		return w.twoSubscribersConnectedToSignal(id)
	})
	sc.Step(`^I set property (\d+) to (\d+)$`, func(id, v int) error {
		return w.iSetPropertyTo(id, v)
	})
	sc.Step(`^I set property (\d+) to (\d+) again$`, func(id, v int) error {
		return w.iSetPropertyToAgain(id, v)
	})
	sc.Step(`^both subscribers were invoked twice with (\d+)$`, func(v int) error {
		return w.bothSubscribersWereInvokedTwiceWith(v)
	})
	sc.Step(`^an object with signal (\d+) declared$`, func(id int) error {
		return w.anObjectWithSignalDeclared(id)
	})
	sc.Step(`^a subscriber connected to signal (\d+), yielding link L$`, func(id int) error {
		return w.aSubscriberConnectedToSignalYieldingLinkL(id)
	})
	sc.Step(`^I post "([^"]*)" to signal (\d+)$`, func(value string, id int) error {
		return w.iPostToSignal(value, id)
	})
	sc.Step(`^I disconnect link L$`, func() error {
		return w.iDisconnectLinkL()
	})
	sc.Step(`^the subscriber saw "([^"]*)" exactly once$`, func(value string) error {
		return w.theSubscriberSawExactlyOnce(value)
	})
	sc.Step(`^the subscriber never saw "([^"]*)"$`, func(value string) error {
		return w.theSubscriberNeverSaw(value)
	})
	sc.Step(`^disconnecting link L again fails$`, func() error {
		return w.disconnectingLinkLAgainFails()
	})
	sc.Step(`^an object with method (\d+) whose callable sleeps (\d+)ms as SingleThread/Auto$`, func(id, ms int) error {
		return w.anObjectWithMethodWhoseCallableSleepsAsSingleThreadAuto(id, ms)
	})
	sc.Step(`^the deadlock timeout is (\d+)ms$`, func(ms int) error {
		return w.theDeadlockTimeoutIs(ms)
	})
	sc.Step(`^I call method (\d+) twice concurrently$`, func(id int) error {
		return w.iCallMethodTwiceConcurrently(id)
	})
	sc.Step(`^the first call resolves normally$`, func() error {
		return w.theFirstCallResolvesNormally()
	})
	sc.Step(`^the second call fails with "([^"]*)"$`, func(msg string) error {
		return w.theSecondCallFailsWith(msg)
	})
	sc.Step(`^an object with method (\d+) whose callable fails with "([^"]*)"$`, func(id int, msg string) error {
		return w.anObjectWithMethodWhoseCallableFailsWith(id, msg)
	})
	sc.Step(`^trace is enabled on the calling context$`, func() error {
		return w.traceIsEnabledOnTheCallingContext()
	})
	sc.Step(`^the call fails with "([^"]*)"$`, func(msg string) error {
		return w.theCallFailsWith(msg)
	})
	sc.Step(`^the context recorded a Call event and a matching Error event sharing one trace id$`, func() error {
		return w.theContextRecordedACallEventAndAMatchingErrorEventSharingOneTraceID()
	})
}

func TestDispatchFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"dispatch.feature"},
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
