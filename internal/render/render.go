package render

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"face-search/internal/models"

	"github.com/mattn/go-isatty"
)

// Тексты, которые видит пользователь
const (
	MsgPlaceholder = "Upload an image to get started."
	MsgLoading     = "Loading results..."
	MsgNoResults   = "No similar faces found within the specified distance and age range. Try adjusting the parameters."
	errorPrefix    = "Error: "
)

// Kind - что показывать в области результатов
type Kind string

const (
	KindPlaceholder Kind = "placeholder"
	KindLoading     Kind = "loading"
	KindError       Kind = "error"
	KindEmpty       Kind = "empty"
	KindResults     Kind = "results"
	KindNone        Kind = "none"
)

// Card - карточка найденного лица
type Card struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
	Image    string  `json:"image"`
}

// View - всё, что нужно отрисовать для одной сессии
type View struct {
	Kind      Kind                    `json:"kind"`
	Status    models.SessionStatus    `json:"status"`
	Message   string                  `json:"message,omitempty"`
	Cards     []Card                  `json:"cards,omitempty"`
	Params    models.SearchParameters `json:"params"`
	HasImage  bool                    `json:"has_image"`
	MediaType string                  `json:"media_type,omitempty"`
}

// Options - настройки отображения. Передаются явно, глобального состояния нет
type Options struct {
	DarkMode bool
	Color    bool
}

// DetectOptions включает цвет только для терминала
func DetectOptions(f *os.File, darkMode bool) Options {
	fd := f.Fd()
	return Options{
		DarkMode: darkMode,
		Color:    isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
	}
}

// Build переводит сессию в представление
func Build(s models.Session) View {
	v := View{
		Status:   s.Status,
		Params:   s.Params,
		HasImage: s.Image != nil,
	}
	if s.Image != nil {
		v.MediaType = s.Image.MediaType
	}

	switch {
	case s.Status == models.StatusQuerying:
		v.Kind = KindLoading
		v.Message = MsgLoading
	case s.Status == models.StatusError:
		v.Kind = KindError
		v.Message = errorPrefix + s.ErrorMessage
	case s.HasEverQueried && len(s.Results) == 0:
		v.Kind = KindEmpty
		v.Message = MsgNoResults
	case s.HasEverQueried:
		v.Kind = KindResults
		v.Cards = make([]Card, 0, len(s.Results))
		for _, r := range s.Results {
			v.Cards = append(v.Cards, Card{
				ID:       r.ID,
				Name:     r.Name,
				Distance: r.Distance,
				Image:    "data:image/png;base64," + r.ImageBase64,
			})
		}
	case s.Image == nil:
		v.Kind = KindPlaceholder
		v.Message = MsgPlaceholder
	default:
		v.Kind = KindNone
	}
	return v
}

type palette struct {
	accent, muted, err, reset string
}

func paletteFor(opts Options) palette {
	if !opts.Color {
		return palette{}
	}
	if opts.DarkMode {
		return palette{accent: "\033[96m", muted: "\033[37m", err: "\033[91m", reset: "\033[0m"}
	}
	return palette{accent: "\033[34m", muted: "\033[90m", err: "\033[31m", reset: "\033[0m"}
}

// Text печатает представление в текстовом виде
func Text(w io.Writer, v View, opts Options) error {
	p := paletteFor(opts)
	var b strings.Builder

	fmt.Fprintf(&b, "%sNum Rows: %d  Distance: %s  Min Age: %d  Max Age: %d%s\n",
		p.muted,
		v.Params.NumRows,
		strconv.FormatFloat(v.Params.ToleranceVar, 'f', -1, 64),
		v.Params.MinAge,
		v.Params.MaxAge,
		p.reset,
	)
	if v.HasImage {
		fmt.Fprintf(&b, "Uploaded Image: %s\n", v.MediaType)
	}

	switch v.Kind {
	case KindError:
		fmt.Fprintf(&b, "%s%s%s\n", p.err, v.Message, p.reset)
	case KindResults:
		for i, c := range v.Cards {
			fmt.Fprintf(&b, "%2d. %s%s%s  Distance = %s\n",
				i+1, p.accent, c.Name, p.reset, strconv.FormatFloat(c.Distance, 'f', -1, 64))
		}
	case KindNone:
	default:
		fmt.Fprintln(&b, v.Message)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
