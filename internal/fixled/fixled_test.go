package fixled

import (
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"
)

type fakeLine struct {
	values []int
	closed bool
}

func (f *fakeLine) SetValue(v int) error {
	f.values = append(f.values, v)
	return nil
}

func (f *fakeLine) Close() error {
	f.closed = true
	return nil
}

func withFakeLine(t *testing.T, fl *fakeLine, err error) {
	t.Helper()
	orig := openLineFn
	t.Cleanup(func() { openLineFn = orig })
	openLineFn = func(pin int) (line, error) {
		if err != nil {
			return nil, err
		}
		return fl, nil
	}
}

func TestLED_SetOnlyWritesTransitions(t *testing.T) {
	fl := &fakeLine{}
	withFakeLine(t, fl, nil)

	led := New(Config{Enable: true, Pin: 17}, zap.NewNop())
	led.Set(true)
	led.Set(true)
	led.Set(false)
	led.Set(false)
	led.Set(true)

	if !reflect.DeepEqual(fl.values, []int{1, 0, 1}) {
		t.Fatalf("values=%v want [1 0 1]", fl.values)
	}
	led.Close()
	if !fl.closed {
		t.Fatalf("expected line closed")
	}
	led.Set(true)
}

func TestLED_DisabledNeverOpens(t *testing.T) {
	orig := openLineFn
	t.Cleanup(func() { openLineFn = orig })
	openLineFn = func(int) (line, error) {
		t.Fatalf("openLine should not be called")
		return nil, nil
	}
	led := New(Config{}, zap.NewNop())
	led.Set(true)
	led.Close()
}

func TestLED_OpenFailureIsNotFatal(t *testing.T) {
	withFakeLine(t, nil, errors.New("busy"))
	led := New(Config{Enable: true, Pin: 17}, zap.NewNop())
	led.Set(true)
	led.Close()
}
