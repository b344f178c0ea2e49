package grid

import "github.com/go-pkgz/lgr"

// Options is the grid configuration. It is copied at construction and never
// changes afterwards.
type Options struct {
	// IndicateNull shows NullMarker in NULL cells instead of leaving them blank.
	IndicateNull bool
	NullMarker   string
	// QuoteChar and ColumnSeparator drive the paste tokenizer.
	QuoteChar       rune
	ColumnSeparator rune
	// DescriptionFormat is the column description template, see Column.Describe.
	DescriptionFormat string
	// MaxPoolLines caps the capacity of each row pool.
	MaxPoolLines int
	Logger       lgr.L
}

const (
	DefaultNullMarker        = "<NULL>"
	DefaultQuoteChar         = '"'
	DefaultColumnSeparator   = ';'
	DefaultDescriptionFormat = "%n %t %a"
)

// DefaultOptions returns the settings used when none are configured.
func DefaultOptions() Options {
	return Options{
		NullMarker:        DefaultNullMarker,
		QuoteChar:         DefaultQuoteChar,
		ColumnSeparator:   DefaultColumnSeparator,
		DescriptionFormat: DefaultDescriptionFormat,
		MaxPoolLines:      DefaultMaxPoolLines,
		Logger:            lgr.Std,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.NullMarker == "" {
		o.NullMarker = def.NullMarker
	}
	if o.QuoteChar == 0 {
		o.QuoteChar = def.QuoteChar
	}
	if o.ColumnSeparator == 0 {
		o.ColumnSeparator = def.ColumnSeparator
	}
	if o.DescriptionFormat == "" {
		o.DescriptionFormat = def.DescriptionFormat
	}
	if o.MaxPoolLines <= 0 {
		o.MaxPoolLines = def.MaxPoolLines
	}
	if o.Logger == nil {
		o.Logger = def.Logger
	}
	return o
}
