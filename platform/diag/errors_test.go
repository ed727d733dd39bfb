package diag

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	t.Parallel()

	t.Run("kind sentinels", func(t *testing.T) {
		tests := []struct {
			name string
			err  *Error
			want error
		}{
			{"syntax", Syntaxf(nil, "bad"), ErrSyntax},
			{"compile", Compilef(nil, "bad"), ErrCompile},
			{"invalid argument", InvalidArgumentf("bad"), ErrInvalidArgument},
			{"illegal state", IllegalStatef("bad"), ErrIllegalState},
			{"internal", Internalf("bad"), ErrInternal},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				require.ErrorIs(t, tt.err, tt.want)
				assert.Equal(t, tt.err.Kind, KindOf(tt.err))
			})
		}
	})

	t.Run("cause is reachable", func(t *testing.T) {
		err := Wrap(KindCompile, io.ErrUnexpectedEOF, nil, "reading body")
		require.ErrorIs(t, err, ErrCompile)
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
		assert.False(t, errors.Is(err, ErrSyntax))
		assert.Equal(t, "reading body: unexpected EOF", err.Error())
	})

	t.Run("location prefix", func(t *testing.T) {
		err := Syntaxf(NewLocation("Foo.src", 3, 7), "unexpected token %q", ";")
		assert.Equal(t, `File Foo.src, Line 3, Column 7: unexpected token ";"`, err.Error())

		err = Syntaxf(NewLocation("", 1, 2), "oops")
		assert.Equal(t, "Line 1, Column 2: oops", err.Error())
	})

	t.Run("kind of foreign error", func(t *testing.T) {
		assert.Equal(t, Kind(0), KindOf(io.EOF))
	})
}
