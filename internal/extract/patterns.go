package extract

import (
	"errors"
	"regexp"
	"strconv"
	"time"
)

var errDateOutOfRange = errors.New("date component out of range")

// DatePattern pairs a regex with its own parse mapping so the priority
// chain stays an explicit ordered list instead of positional index checks.
type DatePattern struct {
	Name  string
	Re    *regexp.Regexp
	Parse func(groups []string) (time.Time, error)
}

// ProductPattern tags a line-item regex with the capture-group mapping for
// quantity, name and optional price (PriceGroup 0 means the pattern
// carries no price).
type ProductPattern struct {
	Name       string
	Re         *regexp.Regexp
	QtyGroup   int
	NameGroup  int
	PriceGroup int
}

// Config is the immutable pattern configuration injected into a Parser.
// Tests substitute custom stoplists or patterns by building their own.
type Config struct {
	DatePatterns    []DatePattern
	OrderPatterns   []*regexp.Regexp
	ProductPatterns []ProductPattern
	Stoplist        []string
	PhonePatterns   []*regexp.Regexp

	MaxQuantity int
	// MaxTextLen caps the input before any regex pass runs, bounding the
	// work an adversarial document can cause.
	MaxTextLen int

	DefaultWarehouseID     string
	DefaultStatus          string
	PlaceholderName        string
	PlaceholderDescription string
}

var spanishMonths = map[string]time.Month{
	"enero": time.January, "febrero": time.February, "marzo": time.March,
	"abril": time.April, "mayo": time.May, "junio": time.June,
	"julio": time.July, "agosto": time.August, "septiembre": time.September,
	"setiembre": time.September, "octubre": time.October,
	"noviembre": time.November, "diciembre": time.December,
}

const monthAlt = `enero|febrero|marzo|abril|mayo|junio|julio|agosto|septiembre|setiembre|octubre|noviembre|diciembre`

// numericDate builds a time.Time from day/month/year strings, rejecting
// out-of-range components instead of letting time.Date normalise them.
func numericDate(dayStr, monthStr, yearStr string) (time.Time, error) {
	day, err := strconv.Atoi(dayStr)
	if err != nil {
		return time.Time{}, err
	}
	month, err := strconv.Atoi(monthStr)
	if err != nil {
		return time.Time{}, err
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, err
	}
	return buildDate(year, time.Month(month), day)
}

func buildDate(year int, month time.Month, day int) (time.Time, error) {
	if month < time.January || month > time.December {
		return time.Time{}, errDateOutOfRange
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != month || t.Year() != year {
		return time.Time{}, errDateOutOfRange
	}
	return t, nil
}

// DefaultConfig reproduces the receipt heuristics: four date patterns,
// three order-id label patterns, four line-item patterns, the stoplist of
// common receipt words and the phone-shaped rejection patterns. Numeric
// dates are read day-first (DD/MM/YYYY, Argentine convention).
func DefaultConfig() Config {
	return Config{
		DatePatterns: []DatePattern{
			{
				Name: "numeric-day-first",
				Re:   regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{4})\b`),
				Parse: func(g []string) (time.Time, error) {
					return numericDate(g[1], g[2], g[3])
				},
			},
			{
				Name: "numeric-year-first",
				Re:   regexp.MustCompile(`\b(\d{4})[/-](\d{1,2})[/-](\d{1,2})\b`),
				Parse: func(g []string) (time.Time, error) {
					return numericDate(g[3], g[2], g[1])
				},
			},
			{
				Name: "spanish-day-de-month",
				Re:   regexp.MustCompile(`(?i)\b(\d{1,2})\s+de\s+(` + monthAlt + `)\s+(?:del?\s+)?(\d{4})\b`),
				Parse: func(g []string) (time.Time, error) {
					day, err := strconv.Atoi(g[1])
					if err != nil {
						return time.Time{}, err
					}
					year, err := strconv.Atoi(g[3])
					if err != nil {
						return time.Time{}, err
					}
					return buildDate(year, spanishMonth(g[2]), day)
				},
			},
			{
				Name: "spanish-month-day",
				Re:   regexp.MustCompile(`(?i)\b(` + monthAlt + `)\s+(\d{1,2})\s*(?:,|de)?\s*(\d{4})\b`),
				Parse: func(g []string) (time.Time, error) {
					day, err := strconv.Atoi(g[2])
					if err != nil {
						return time.Time{}, err
					}
					year, err := strconv.Atoi(g[3])
					if err != nil {
						return time.Time{}, err
					}
					return buildDate(year, spanishMonth(g[1]), day)
				},
			},
		},
		OrderPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:orden|order|pedido|remito|n[uú]mero)\b\s*(?:n[°ºo]\.?\s*)?[:#]?\s*([A-Za-z0-9][A-Za-z0-9-]*)`),
			regexp.MustCompile(`(?i)\bref(?:erencia)?\b\.?\s*[:#]?\s*([A-Za-z0-9][A-Za-z0-9-]*)`),
			regexp.MustCompile(`(?i)\bc[oó]d(?:igo)?\b\.?\s*[:#]?\s*([A-Za-z0-9][A-Za-z0-9-]*)`),
		},
		ProductPatterns: []ProductPattern{
			{
				Name:       "qty-name-price",
				Re:         regexp.MustCompile(`(?m)^[ \t]*(\d{1,6})[ \t]+([^\d\s][^\n]*?)[ \t]+(\d+[.,]\d{1,2})[ \t]*$`),
				QtyGroup:   1,
				NameGroup:  2,
				PriceGroup: 3,
			},
			{
				Name:       "name-qty-price",
				Re:         regexp.MustCompile(`(?m)^[ \t]*([^\d\s][^\n]*?)[ \t]+(\d{1,6})[ \t]+(\d+[.,]\d{1,2})[ \t]*$`),
				QtyGroup:   2,
				NameGroup:  1,
				PriceGroup: 3,
			},
			// The price-less variants keep digits out of the name so a
			// priced line never re-matches here with the price glued onto
			// the name.
			{
				Name:      "qty-name",
				Re:        regexp.MustCompile(`(?m)^[ \t]*(\d{1,6})[ \t]+([A-Za-zÁÉÍÓÚÑÜáéíóúñü][A-Za-zÁÉÍÓÚÑÜáéíóúñü .,-]*?)[ \t]*$`),
				QtyGroup:  1,
				NameGroup: 2,
			},
			{
				Name:      "name-qty",
				Re:        regexp.MustCompile(`(?m)^[ \t]*([A-Za-zÁÉÍÓÚÑÜáéíóúñü][A-Za-zÁÉÍÓÚÑÜáéíóúñü .,-]*?)[ \t]+(\d{1,6})[ \t]*$`),
				QtyGroup:  2,
				NameGroup: 1,
			},
		},
		Stoplist: []string{
			"total", "subtotal", "iva", "fecha", "telefono", "teléfono",
			"remito", "factura", "cliente", "proveedor", "direccion",
			"dirección", "cuit", "cuil", "dni", "descuento", "recargo",
			"importe", "cantidad", "precio", "unitario", "descripcion",
			"descripción", "articulo", "artículo", "codigo", "código",
			"numero", "número", "pagina", "página", "vencimiento",
			"contacto", "celular", "observaciones", "firma", "entrega",
		},
		PhonePatterns: []*regexp.Regexp{
			regexp.MustCompile(`\d{10}`),
			regexp.MustCompile(`\d{3}[-.\s]?\d{3}[-.\s]?\d{4}`),
			regexp.MustCompile(`\d{2}[-.\s]?\d{4}[-.\s]?\d{4}`),
			regexp.MustCompile(`\b15[-.\s]?\d{4}[-.\s]?\d{4}`),
			regexp.MustCompile(`(?i)\b(?:tel|tel[eé]fono|cel|celular|contacto)\b`),
		},
		MaxQuantity:            999999,
		MaxTextLen:             1 << 20,
		DefaultWarehouseID:     "main-warehouse",
		DefaultStatus:          "Pending",
		PlaceholderName:        "Producto extraído de PDF",
		PlaceholderDescription: "Extraído automáticamente del PDF",
	}
}

func spanishMonth(name string) time.Month {
	if m, ok := spanishMonths[normalizeMonth(name)]; ok {
		return m
	}
	return 0
}

func normalizeMonth(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		out = append(out, r)
	}
	return string(out)
}
