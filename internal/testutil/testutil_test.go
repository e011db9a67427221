package testutil

import "testing"

func TestAssertions(t *testing.T) {
	AssertEqual(t, 42, 42)
	AssertEqual(t, "hello", "hello")
	AssertEqual(t, []int{1, 2, 3}, []int{1, 2, 3})

	AssertNoError(t, nil)

	AssertTrue(t, true, "should be true")
	AssertFalse(t, false, "should be false")
}

func TestAssertError(t *testing.T) {
	AssertError(t, errTest{})
}

type errTest struct{}

func (errTest) Error() string { return "test error" }
