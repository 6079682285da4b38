// Package gazetteertest cung cấp bộ dữ liệu hành chính nhỏ cho test.
package gazetteertest

import (
	"bytes"
	_ "embed"
	"testing"

	"github.com/address-resolver/internal/gazetteer"
	"github.com/stretchr/testify/require"
)

//go:embed testdata/reference.yaml
var referenceYAML []byte

// YAML nội dung snapshot thô.
func YAML() []byte {
	return append([]byte(nil), referenceYAML...)
}

// Snapshot giải mã snapshot của fixture.
func Snapshot(t testing.TB) *gazetteer.Snapshot {
	t.Helper()
	snap, err := gazetteer.ReadSnapshot(bytes.NewReader(referenceYAML))
	require.NoError(t, err)
	return snap
}

// Index dựng index từ fixture.
func Index(t testing.TB) *gazetteer.Index {
	t.Helper()
	idx, err := Snapshot(t).Index()
	require.NoError(t, err)
	return idx
}
