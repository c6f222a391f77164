package domain

type Line struct {
	ProductID      string
	Name           string
	UnitPriceCents int64
	Quantity       int
	Stock          int
}

func (l Line) TotalCents() int64 {
	return int64(l.Quantity) * l.UnitPriceCents
}

type Cart struct {
	UserID string
	Lines  []Line
}

func (c Cart) SubtotalCents() int64 {
	var total int64
	for _, l := range c.Lines {
		total += l.TotalCents()
	}
	return total
}

func (c Cart) IsEmpty() bool { return len(c.Lines) == 0 }
