package imageprocessing

import (
	"errors"
	"reflect"
	"testing"
)

type mockCommand struct {
	name        string
	executeFunc func([]byte) ([]byte, error)
}

func (m *mockCommand) Name() string {
	return m.name
}

func (m *mockCommand) Execute(imageData []byte) ([]byte, error) {
	if m.executeFunc != nil {
		return m.executeFunc(imageData)
	}
	return imageData, nil
}

func TestCommandRegistry_Register(t *testing.T) {
	registry := NewCommandRegistry()
	factory := func(params map[string]any) (Command, error) {
		return &mockCommand{name: "TestCommand"}, nil
	}

	if err := registry.Register("TestCommand", factory); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if err := registry.Register("TestCommand", factory); err == nil {
		t.Error("Expected error for duplicate registration")
	}
	if err := registry.Register("", factory); err == nil {
		t.Error("Expected error for empty name")
	}
	if err := registry.Register("NilFactory", nil); err == nil {
		t.Error("Expected error for nil factory")
	}
}

func TestCommandRegistry_Create(t *testing.T) {
	registry := NewCommandRegistry()
	factoryErr := errors.New("bad params")
	_ = registry.Register("Failing", func(params map[string]any) (Command, error) {
		return nil, factoryErr
	})

	if _, err := registry.Create("Unknown", nil); err == nil {
		t.Error("Expected error for unknown command")
	}
	if _, err := registry.Create("Failing", nil); !errors.Is(err, factoryErr) {
		t.Errorf("Expected wrapped factory error, got %v", err)
	}
}

func TestDefaultRegistry_BuiltInCommands(t *testing.T) {
	expected := []string{"JpegConverterCommand", "ScaleCommand"}
	if got := DefaultRegistry.GetRegisteredNames(); !reflect.DeepEqual(got, expected) {
		t.Errorf("GetRegisteredNames() = %v, want %v", got, expected)
	}
	for _, name := range expected {
		if !DefaultRegistry.IsRegistered(name) {
			t.Errorf("expected %s to be registered", name)
		}
	}
}

func TestGetIntParam(t *testing.T) {
	params := map[string]any{"int": 3, "int64": int64(4), "float": 5.0, "string": "6"}

	tests := []struct {
		key      string
		expected int
	}{
		{"int", 3},
		{"int64", 4},
		{"float", 5},
		{"string", -1},
		{"missing", -1},
	}
	for _, tt := range tests {
		if got := getIntParam(params, tt.key, -1); got != tt.expected {
			t.Errorf("getIntParam(%q) = %d, want %d", tt.key, got, tt.expected)
		}
	}
}

func TestCommandInvoker_ExecutesInOrder(t *testing.T) {
	var order []string
	appendName := func(name string) *mockCommand {
		return &mockCommand{name: name, executeFunc: func(data []byte) ([]byte, error) {
			order = append(order, name)
			return append(data, name...), nil
		}}
	}

	invoker := NewCommandInvoker([]Command{appendName("a"), appendName("b")})
	result, err := invoker.Execute([]byte(">"))
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if string(result) != ">ab" {
		t.Errorf("Execute() = %q, want %q", result, ">ab")
	}
	if !reflect.DeepEqual(order, []string{"a", "b"}) {
		t.Errorf("execution order = %v", order)
	}
}

func TestCommandInvoker_StopsOnError(t *testing.T) {
	failure := errors.New("boom")
	called := false
	invoker := NewCommandInvoker([]Command{
		&mockCommand{name: "failing", executeFunc: func([]byte) ([]byte, error) { return nil, failure }},
		&mockCommand{name: "after", executeFunc: func(d []byte) ([]byte, error) { called = true; return d, nil }},
	})

	if _, err := invoker.Execute([]byte("x")); !errors.Is(err, failure) {
		t.Errorf("expected wrapped failure, got %v", err)
	}
	if called {
		t.Error("command after the failing one must not run")
	}
}

func TestNewCommandInvokerFromConfigs_InvalidConfig(t *testing.T) {
	configs := []CommandConfig{{Name: "ScaleCommand", Params: map[string]any{}}}
	if _, err := NewCommandInvokerFromConfigs(DefaultRegistry, configs); err == nil {
		t.Error("Expected error for missing scale parameters")
	}
}
