package dragdrop

// Grid geometry constants, matching the fixed week-view layout: a header
// row, one leading time-label column, seven equal day columns and 60px hour
// rows.
const (
	DayCount     = 7
	HoursPerDay  = 24
	ZoneCount    = DayCount * HoursPerDay
	HeaderHeight = 60.0
	HourHeight   = 60.0
	gridColumns  = DayCount + 1
)

// Rect is an axis-aligned rectangle in viewport coordinates. Containment is
// half-open on the right and bottom edges so adjacent rectangles partition
// the plane without overlap.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Contains(x, y float64) bool {
	return x >= r.Left && x < r.Left+r.Width && y >= r.Top && y < r.Top+r.Height
}

// Zone is one (day, hour) drop cell of the week grid.
type Zone struct {
	DayIndex int  `json:"dayIndex"`
	Hour     int  `json:"hour"`
	Rect     Rect `json:"rect"`
}

// Viewport describes the calendar surface's bounding box and scroll state at
// the moment a drag begins. Zones are derived from it once per session and
// go stale if the surface scrolls mid-drag.
type Viewport struct {
	Left      float64 `json:"left"`
	Top       float64 `json:"top"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	ScrollTop float64 `json:"scrollTop"`
}

// BuildGrid derives the full 7x24 drop-zone partition for a viewport. The
// scroll offset is subtracted so every rectangle is expressed in viewport
// coordinates, ready for pointer hit-testing.
func BuildGrid(vp Viewport) []Zone {
	columnWidth := vp.Width / gridColumns
	zones := make([]Zone, 0, ZoneCount)
	for dayIndex := 0; dayIndex < DayCount; dayIndex++ {
		for hour := 0; hour < HoursPerDay; hour++ {
			zones = append(zones, Zone{
				DayIndex: dayIndex,
				Hour:     hour,
				Rect: Rect{
					Left:   vp.Left + columnWidth*float64(dayIndex+1),
					Top:    vp.Top + HeaderHeight + HourHeight*float64(hour) - vp.ScrollTop,
					Width:  columnWidth,
					Height: HourHeight,
				},
			})
		}
	}
	return zones
}

// FindZone returns the zone containing the point, or nil when the point
// falls outside the grid (the time-label column, the header, or past the
// last hour row).
func FindZone(zones []Zone, x, y float64) *Zone {
	for i := range zones {
		if zones[i].Rect.Contains(x, y) {
			return &zones[i]
		}
	}
	return nil
}
