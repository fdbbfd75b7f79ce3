package models

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Имена параметров поиска (совпадают с именами query параметров)
const (
	ParamNumRows      = "num_rows"
	ParamToleranceVar = "tolerance_var"
	ParamMinAge       = "min_age"
	ParamMaxAge       = "max_age"
)

// ParamNames - параметры в порядке передачи в query string
var ParamNames = []string{ParamNumRows, ParamToleranceVar, ParamMinAge, ParamMaxAge}

// Допустимые диапазоны
const (
	MinNumRows      = 1
	MaxNumRows      = 20
	MinToleranceVar = 0.0
	MaxToleranceVar = 0.8
)

var (
	ErrUnknownParameter    = errors.New("unknown parameter")
	ErrInvalidParameter    = errors.New("invalid parameter value")
	ErrParameterOutOfRange = errors.New("parameter out of range")
)

// SearchParameters - настраиваемые пользователем параметры поиска
// MinAge <= MaxAge намеренно не проверяется
type SearchParameters struct {
	NumRows      int     `json:"num_rows"`
	ToleranceVar float64 `json:"tolerance_var"`
	MinAge       int     `json:"min_age"`
	MaxAge       int     `json:"max_age"`
}

// DefaultParameters возвращает значения по умолчанию из UI
func DefaultParameters() SearchParameters {
	return SearchParameters{
		NumRows:      10,
		ToleranceVar: 0.05,
		MinAge:       20,
		MaxAge:       80,
	}
}

// Validate проверяет что все параметры в допустимых диапазонах
func (p SearchParameters) Validate() error {
	if p.NumRows < MinNumRows || p.NumRows > MaxNumRows {
		return fmt.Errorf("%w: %s=%d, expected %d..%d", ErrParameterOutOfRange, ParamNumRows, p.NumRows, MinNumRows, MaxNumRows)
	}
	if math.IsNaN(p.ToleranceVar) || math.IsInf(p.ToleranceVar, 0) {
		return fmt.Errorf("%w: %s=%g, expected %g..%g", ErrParameterOutOfRange, ParamToleranceVar, p.ToleranceVar, MinToleranceVar, MaxToleranceVar)
	}
	if p.ToleranceVar < MinToleranceVar || p.ToleranceVar > MaxToleranceVar {
		return fmt.Errorf("%w: %s=%g, expected %g..%g", ErrParameterOutOfRange, ParamToleranceVar, p.ToleranceVar, MinToleranceVar, MaxToleranceVar)
	}
	if p.MinAge < 0 {
		return fmt.Errorf("%w: %s=%d, expected >= 0", ErrParameterOutOfRange, ParamMinAge, p.MinAge)
	}
	if p.MaxAge < 0 {
		return fmt.Errorf("%w: %s=%d, expected >= 0", ErrParameterOutOfRange, ParamMaxAge, p.MaxAge)
	}
	return nil
}

// With возвращает копию параметров с изменённым значением name.
// Значение разбирается и проверяется здесь, на границе ввода
func (p SearchParameters) With(name, value string) (SearchParameters, error) {
	value = strings.TrimSpace(value)
	out := p

	switch name {
	case ParamNumRows, ParamMinAge, ParamMaxAge:
		n, err := strconv.Atoi(value)
		if err != nil {
			return p, fmt.Errorf("%w: %s=%q", ErrInvalidParameter, name, value)
		}
		switch name {
		case ParamNumRows:
			out.NumRows = n
		case ParamMinAge:
			out.MinAge = n
		default:
			out.MaxAge = n
		}
	case ParamToleranceVar:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return p, fmt.Errorf("%w: %s=%q", ErrInvalidParameter, name, value)
		}
		out.ToleranceVar = f
	default:
		return p, fmt.Errorf("%w: %q", ErrUnknownParameter, name)
	}

	if err := out.Validate(); err != nil {
		return p, err
	}
	return out, nil
}

// Get возвращает строковое значение параметра в формате query string
func (p SearchParameters) Get(name string) string {
	switch name {
	case ParamNumRows:
		return strconv.Itoa(p.NumRows)
	case ParamToleranceVar:
		return strconv.FormatFloat(p.ToleranceVar, 'f', -1, 64)
	case ParamMinAge:
		return strconv.Itoa(p.MinAge)
	case ParamMaxAge:
		return strconv.Itoa(p.MaxAge)
	}
	return ""
}

// Query собирает query string в порядке ParamNames
func (p SearchParameters) Query() string {
	parts := make([]string, 0, len(ParamNames))
	for _, name := range ParamNames {
		parts = append(parts, name+"="+url.QueryEscape(p.Get(name)))
	}
	return strings.Join(parts, "&")
}
