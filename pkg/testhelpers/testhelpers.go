// Package testhelpers provides small assertion helpers shared by tests.
package testhelpers

import (
	"reflect"
	"testing"
)

// AssertEqual fails the test if expected != actual.
func AssertEqual(t *testing.T, expected, actual any) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Errorf("expected %v, got %v", expected, actual)
	}
}

// AssertNoError fails the test if err is non-nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
}

// AssertNotNil fails the test if v is nil.
func AssertNotNil(t *testing.T, v any) {
	t.Helper()
	if v == nil {
		t.Fatal("expected non-nil value")
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		if rv.IsNil() {
			t.Fatal("expected non-nil value")
		}
	}
}

// AssertTrue fails the test with msg if cond is false.
func AssertTrue(t *testing.T, cond bool, msg string) {
	t.Helper()
	if !cond {
		t.Error(msg)
	}
}

// AssertFalse fails the test with msg if cond is true.
func AssertFalse(t *testing.T, cond bool, msg string) {
	t.Helper()
	if cond {
		t.Error(msg)
	}
}

// CommandAnnotationTest describes one expected cobra command annotation.
type CommandAnnotationTest struct {
	Key      string
	Expected string
}

// TestCommandAnnotations checks a cobra command's annotations against the
// expected key/value pairs.
func TestCommandAnnotations(t *testing.T, annotations map[string]string, tests []CommandAnnotationTest) {
	t.Helper()
	for _, tt := range tests {
		if got := annotations[tt.Key]; got != tt.Expected {
			t.Errorf("annotation %q: expected %q, got %q", tt.Key, tt.Expected, got)
		}
	}
}
