// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil

import (
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestingT is the part of *testing.T the assertions use. GinkgoT() satisfies
// it too.
type TestingT interface {
	require.TestingT
	Helper()
}

// Code returns the oops code carried by err, or nil when err is not an oops
// error. It reads well inside gomega matchers.
func Code(err error) any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return oopsErr.Code()
}

// AssertErrorCode asserts that err is an oops error with the given code.
func AssertErrorCode(t TestingT, err error, code string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, code, oopsErr.Code())
}

// AssertErrorContext asserts that err carries value under key.
func AssertErrorContext(t TestingT, err error, key string, value any) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	ctx := oopsErr.Context()
	require.Contains(t, ctx, key)
	assert.Equal(t, value, ctx[key])
}
