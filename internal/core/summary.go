package core

// Summary is a reduction over a returned chart series.
type Summary struct {
	View    ValueView `json:"view"`
	Value   Money     `json:"value"` // the sum selected by View
	Cash    Money     `json:"cash"`
	Online  Money     `json:"online"`
	Total   Money     `json:"total"`
	Buckets int       `json:"buckets"`
	Active  int       `json:"activeBuckets"` // buckets with a non-zero total
}

// Summarize reduces the series, not the raw records, so the figure always
// matches what the chart shows.
func Summarize(points []ChartPoint, view ValueView) Summary {
	s := Summary{View: view, Buckets: len(points)}
	for _, p := range points {
		s.Cash = s.Cash.Add(p.Cash)
		s.Online = s.Online.Add(p.Online)
		s.Total = s.Total.Add(p.Total)
		if !p.Total.IsZero() {
			s.Active++
		}
	}

	switch view {
	case ViewCash:
		s.Value = s.Cash
	case ViewOnline:
		s.Value = s.Online
	default:
		s.View = ViewTotal
		s.Value = s.Total
	}
	return s
}

// Value returns the point's amount for the view.
func (p ChartPoint) Value(view ValueView) Money {
	switch view {
	case ViewCash:
		return p.Cash
	case ViewOnline:
		return p.Online
	default:
		return p.Total
	}
}
