package sanitizer

type Strategy func(string) string

// Pipeline applies strategies left to right.
type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

// Address lines keep their case; only whitespace is normalized.
var addressLine = Pipeline{TrimAndNormalize}

func NormalizeAddressLine(s string) string {
	return addressLine.Apply(s)
}

func NormalizePostalCode(s string) string {
	return Pipeline{NormalizeTrackingNumber}.Apply(s)
}
