// Package testhelpers provides test utilities for Faultline
package testhelpers

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// ========================================
// JSON Assertion Helpers
// ========================================

// AssertJSONEqual compares two JSON strings for equality (ignoring formatting)
func AssertJSONEqual(t *testing.T, expected, actual string, msg string) {
	t.Helper()

	var expectedObj, actualObj interface{}

	if err := json.Unmarshal([]byte(expected), &expectedObj); err != nil {
		t.Fatalf("%s: failed to parse expected JSON: %v", msg, err)
	}

	if err := json.Unmarshal([]byte(actual), &actualObj); err != nil {
		t.Fatalf("%s: failed to parse actual JSON: %v", msg, err)
	}

	expectedBytes, _ := json.Marshal(expectedObj)
	actualBytes, _ := json.Marshal(actualObj)

	if string(expectedBytes) != string(actualBytes) {
		t.Errorf("%s: JSON mismatch\nexpected: %s\nactual: %s", msg, expected, actual)
	}
}

// AssertJSONContainsKey checks if a JSON object contains a specific key
func AssertJSONContainsKey(t *testing.T, jsonStr string, key string, msg string) {
	t.Helper()

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(jsonStr), &obj); err != nil {
		t.Fatalf("%s: failed to parse JSON: %v", msg, err)
	}

	if _, exists := obj[key]; !exists {
		t.Errorf("%s: JSON does not contain key %q", msg, key)
	}
}

// AssertJSONLacksKey checks that a JSON object does not contain a key
func AssertJSONLacksKey(t *testing.T, jsonStr string, key string, msg string) {
	t.Helper()

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(jsonStr), &obj); err != nil {
		t.Fatalf("%s: failed to parse JSON: %v", msg, err)
	}

	if _, exists := obj[key]; exists {
		t.Errorf("%s: JSON unexpectedly contains key %q", msg, key)
	}
}

// AssertJSONKeyValue checks if a JSON object has a specific key-value pair
func AssertJSONKeyValue(t *testing.T, jsonStr string, key string, expectedValue interface{}, msg string) {
	t.Helper()

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(jsonStr), &obj); err != nil {
		t.Fatalf("%s: failed to parse JSON: %v", msg, err)
	}

	actualValue, exists := obj[key]
	if !exists {
		t.Errorf("%s: JSON does not contain key %q", msg, key)
		return
	}

	// Convert both to JSON for comparison to handle type differences
	expectedJSON, _ := json.Marshal(expectedValue)
	actualJSON, _ := json.Marshal(actualValue)

	if string(expectedJSON) != string(actualJSON) {
		t.Errorf("%s: JSON key %q mismatch\nexpected: %v\nactual: %v", msg, key, expectedValue, actualValue)
	}
}

// ========================================
// Concurrent Testing Helpers
// ========================================

// ConcurrentTest runs a function concurrently multiple times and waits for completion
func ConcurrentTest(t *testing.T, goroutines int, fn func(workerID int)) {
	t.Helper()

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			fn(id)
		}(i)
	}

	wg.Wait()
}

// ConcurrentTestWithTimeout runs a function concurrently and fails if it doesn't complete in time
func ConcurrentTestWithTimeout(t *testing.T, timeout time.Duration, goroutines int, fn func(workerID int)) {
	t.Helper()

	done := make(chan struct{})
	go func() {
		ConcurrentTest(t, goroutines, fn)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatalf("concurrent test did not complete within %v", timeout)
	}
}
