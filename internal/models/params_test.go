package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchParametersWith(t *testing.T) {
	tests := []struct {
		name    string
		param   string
		value   string
		wantErr error
		check   func(*testing.T, SearchParameters)
	}{
		{
			name:  "num_rows lower bound",
			param: ParamNumRows,
			value: "1",
			check: func(t *testing.T, p SearchParameters) { assert.Equal(t, 1, p.NumRows) },
		},
		{
			name:  "num_rows upper bound",
			param: ParamNumRows,
			value: "20",
			check: func(t *testing.T, p SearchParameters) { assert.Equal(t, 20, p.NumRows) },
		},
		{name: "num_rows zero", param: ParamNumRows, value: "0", wantErr: ErrParameterOutOfRange},
		{name: "num_rows 21", param: ParamNumRows, value: "21", wantErr: ErrParameterOutOfRange},
		{name: "num_rows not a number", param: ParamNumRows, value: "ten", wantErr: ErrInvalidParameter},
		{
			name:  "tolerance upper bound",
			param: ParamToleranceVar,
			value: "0.8",
			check: func(t *testing.T, p SearchParameters) { assert.InDelta(t, 0.8, p.ToleranceVar, 1e-9) },
		},
		{name: "tolerance too high", param: ParamToleranceVar, value: "0.81", wantErr: ErrParameterOutOfRange},
		{name: "tolerance negative", param: ParamToleranceVar, value: "-0.03", wantErr: ErrParameterOutOfRange},
		{name: "tolerance NaN", param: ParamToleranceVar, value: "NaN", wantErr: ErrParameterOutOfRange},
		{name: "tolerance infinity", param: ParamToleranceVar, value: "+Inf", wantErr: ErrParameterOutOfRange},
		{
			name:  "inverted age range is allowed",
			param: ParamMinAge,
			value: "90",
			check: func(t *testing.T, p SearchParameters) {
				assert.Equal(t, 90, p.MinAge)
				assert.Equal(t, 80, p.MaxAge)
			},
		},
		{name: "negative max age", param: ParamMaxAge, value: "-1", wantErr: ErrParameterOutOfRange},
		{name: "unknown name", param: "page", value: "1", wantErr: ErrUnknownParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := DefaultParameters()
			got, err := base.With(tt.param, tt.value)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, base, got, "rejected value must not change parameters")
				return
			}
			require.NoError(t, err)
			tt.check(t, got)
		})
	}
}

func TestSearchParametersQuery(t *testing.T) {
	p := SearchParameters{NumRows: 10, ToleranceVar: 0.05, MinAge: 20, MaxAge: 80}
	assert.Equal(t, "num_rows=10&tolerance_var=0.05&min_age=20&max_age=80", p.Query())
}

func TestUploadedImageDataURI(t *testing.T) {
	img := UploadedImage{MediaType: "png", Data: []byte("abc")}
	assert.Equal(t, "data:image/png;base64,YWJj", img.DataURI())
}

func TestSessionCloneIsIndependent(t *testing.T) {
	s := Session{
		Status:  StatusSuccess,
		Image:   &UploadedImage{MediaType: "png", Data: []byte{1}},
		Results: []SearchResult{{ID: 1, Name: "Alice"}},
	}
	c := s.Clone()
	c.Results[0].Name = "Bob"
	c.Image.MediaType = "gif"

	assert.Equal(t, "Alice", s.Results[0].Name)
	assert.Equal(t, "png", s.Image.MediaType)
}
