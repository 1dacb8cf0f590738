// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package ioutil_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-volscan/internal/ioutil"
)

// chunkedReader returns at most 3 bytes per call.
type chunkedReader struct {
	data []byte
}

func (r chunkedReader) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(r.data)) {
		return 0, io.EOF
	}

	n := copy(p[:min(len(p), 3)], r.data[off:])

	return n, nil
}

func TestReadFullAt(t *testing.T) {
	t.Parallel()

	r := chunkedReader{data: []byte("0123456789")}

	buf := make([]byte, 5)
	require.NoError(t, ioutil.ReadFullAt(r, buf, 2))
	assert.Equal(t, []byte("23456"), buf)

	buf = make([]byte, 5)
	assert.ErrorIs(t, ioutil.ReadFullAt(r, buf, 8), io.ErrUnexpectedEOF)

	buf = make([]byte, 2)
	require.NoError(t, ioutil.ReadFullAt(bytes.NewReader([]byte("0123456789")), buf, 8))
	assert.Equal(t, []byte("89"), buf)
}

func TestReadPrefix(t *testing.T) {
	t.Parallel()

	buf, err := ioutil.ReadPrefix(chunkedReader{data: []byte("0123456789")}, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("0123"), buf)

	buf, err = ioutil.ReadPrefix(chunkedReader{data: []byte("0123")}, 16)
	require.NoError(t, err)
	assert.Equal(t, []byte("0123"), buf)
}
