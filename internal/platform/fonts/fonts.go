// Package fonts loads the brand typefaces used by chart rendering.
// When the configured TTF files are missing the package falls back to
// the bundled Go Regular face so rendering never becomes fatal.
package fonts

import (
	"os"
	"sync"

	"github.com/golang/freetype/truetype"
	"github.com/rs/zerolog"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// Library hands out font faces at requested sizes. Parsed fonts and
// derived faces are cached; Library is safe for concurrent use.
type Library struct {
	regularPath string
	boldPath    string
	log         zerolog.Logger

	once    sync.Once
	regular *truetype.Font
	bold    *truetype.Font

	mu    sync.Mutex
	faces map[faceKey]font.Face
}

type faceKey struct {
	bold bool
	size float64
}

// NewLibrary builds a Library backed by the given TTF paths. Either
// path may be empty, in which case the bundled fallback is used.
func NewLibrary(regularPath, boldPath string, log zerolog.Logger) *Library {
	return &Library{
		regularPath: regularPath,
		boldPath:    boldPath,
		log:         log,
		faces:       make(map[faceKey]font.Face),
	}
}

func (l *Library) load() {
	l.regular = l.parseOrFallback(l.regularPath, goregular.TTF, "regular")
	l.bold = l.parseOrFallback(l.boldPath, gobold.TTF, "bold")
}

func (l *Library) parseOrFallback(path string, fallback []byte, kind string) *truetype.Font {
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			f, perr := truetype.Parse(data)
			if perr == nil {
				return f
			}
			l.log.Warn().Err(perr).Str("path", path).Str("kind", kind).Msg("brand font unparseable, using bundled fallback")
		} else {
			l.log.Warn().Err(err).Str("path", path).Str("kind", kind).Msg("brand font unreadable, using bundled fallback")
		}
	}
	f, err := truetype.Parse(fallback)
	if err != nil {
		// The bundled gofont data is known-good; this cannot happen.
		panic(err)
	}
	return f
}

// Regular returns a regular-weight face at the given point size.
func (l *Library) Regular(size float64) font.Face {
	return l.face(false, size)
}

// Bold returns a bold-weight face at the given point size.
func (l *Library) Bold(size float64) font.Face {
	return l.face(true, size)
}

func (l *Library) face(bold bool, size float64) font.Face {
	l.once.Do(l.load)

	key := faceKey{bold: bold, size: size}

	l.mu.Lock()
	defer l.mu.Unlock()
	if f, ok := l.faces[key]; ok {
		return f
	}

	src := l.regular
	if bold {
		src = l.bold
	}
	f := truetype.NewFace(src, &truetype.Options{Size: size, DPI: 72})
	l.faces[key] = f
	return f
}
