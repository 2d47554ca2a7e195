package gcp

import (
	"errors"
	"testing"
)

func addPoint(t *testing.T, s *Store, ix, iy, mx, my float64) PointID {
	t.Helper()
	id, err := s.Add(Point{ImageX: ix, ImageY: iy, MapX: mx, MapY: my, Enabled: true})
	if err != nil {
		t.Fatalf("Add(%g, %g): %v", ix, iy, err)
	}
	return id
}

func TestAddAssignsDefaultsAndOrder(t *testing.T) {
	s := NewStore()
	a := addPoint(t, s, 0, 0, 10, 10)
	b := addPoint(t, s, 100, 0, 20, 10)
	c := addPoint(t, s, 0, 100, 10, 20)

	points := s.List()
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	if points[0].ID != a || points[1].ID != b || points[2].ID != c {
		t.Errorf("insertion order not preserved: %v", points)
	}
	for _, p := range points {
		if p.Weight != 1.0 {
			t.Errorf("point %d: default weight = %g, want 1.0", p.ID, p.Weight)
		}
	}
}

func TestAddDuplicateLocation(t *testing.T) {
	s := NewStore()
	addPoint(t, s, 50, 60, 1, 2)

	_, err := s.Add(Point{ImageX: 50, ImageY: 60, MapX: 9, MapY: 9, Enabled: true})
	if !errors.Is(err, ErrDuplicateLocation) {
		t.Fatalf("expected ErrDuplicateLocation, got %v", err)
	}
	if s.Count() != 1 {
		t.Errorf("failed add must not insert, count = %d", s.Count())
	}
}

func TestDisabledPointFreesLocation(t *testing.T) {
	s := NewStore()
	id := addPoint(t, s, 5, 5, 0, 0)
	if err := s.SetEnabled(id, false); err != nil {
		t.Fatal(err)
	}

	// Location is free while the original is disabled.
	if _, err := s.Add(Point{ImageX: 5, ImageY: 5, Enabled: true}); err != nil {
		t.Fatalf("add over disabled point: %v", err)
	}

	// Re-enabling the original would create two active points at (5,5).
	if err := s.SetEnabled(id, true); !errors.Is(err, ErrDuplicateLocation) {
		t.Errorf("expected ErrDuplicateLocation on re-enable, got %v", err)
	}
}

func TestRemoveAndNotFound(t *testing.T) {
	s := NewStore()
	id := addPoint(t, s, 1, 2, 3, 4)

	if err := s.Remove(id); err != nil {
		t.Fatal(err)
	}
	if s.Count() != 0 {
		t.Errorf("count after remove = %d, want 0", s.Count())
	}
	if err := s.Remove(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.SetWeight(PointID(999), 2); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetWeightRejectsNonPositive(t *testing.T) {
	s := NewStore()
	id := addPoint(t, s, 1, 1, 1, 1)

	if err := s.SetWeight(id, 0); err == nil {
		t.Error("expected error for zero weight")
	}
	if err := s.SetWeight(id, 2.5); err != nil {
		t.Fatal(err)
	}
	p, _ := s.Get(id)
	if p.Weight != 2.5 {
		t.Errorf("weight = %g, want 2.5", p.Weight)
	}
}

func TestCountEnabled(t *testing.T) {
	s := NewStore()
	a := addPoint(t, s, 0, 0, 0, 0)
	addPoint(t, s, 1, 0, 0, 0)
	addPoint(t, s, 0, 1, 0, 0)

	if got := s.CountEnabled(); got != 3 {
		t.Fatalf("CountEnabled = %d, want 3", got)
	}
	if err := s.SetEnabled(a, false); err != nil {
		t.Fatal(err)
	}
	if got := s.CountEnabled(); got != 2 {
		t.Errorf("CountEnabled = %d, want 2", got)
	}
	if got := len(s.Enabled()); got != 2 {
		t.Errorf("len(Enabled()) = %d, want 2", got)
	}
}

func TestChangeNotificationAndGeneration(t *testing.T) {
	s := NewStore()
	var fired int
	s.OnChange(func() { fired++ })

	gen := s.Generation()
	id := addPoint(t, s, 0, 0, 0, 0)
	if fired != 1 {
		t.Errorf("listener fired %d times after add, want 1", fired)
	}
	if s.Generation() == gen {
		t.Error("generation not bumped by add")
	}

	// A failed mutation must not notify.
	_, _ = s.Add(Point{ImageX: 0, ImageY: 0, Enabled: true})
	if fired != 1 {
		t.Errorf("listener fired on failed add, count = %d", fired)
	}

	// A no-op enable must not notify.
	if err := s.SetEnabled(id, true); err != nil {
		t.Fatal(err)
	}
	if fired != 1 {
		t.Errorf("listener fired on no-op enable, count = %d", fired)
	}

	if err := s.SetMapPoint(id, 7, 8); err != nil {
		t.Fatal(err)
	}
	if fired != 2 {
		t.Errorf("listener fired %d times after map edit, want 2", fired)
	}
}

func TestSetImagePointDuplicateCheck(t *testing.T) {
	s := NewStore()
	addPoint(t, s, 0, 0, 0, 0)
	id := addPoint(t, s, 10, 10, 0, 0)

	if err := s.SetImagePoint(id, 0, 0); !errors.Is(err, ErrDuplicateLocation) {
		t.Errorf("expected ErrDuplicateLocation, got %v", err)
	}
	if err := s.SetImagePoint(id, 20, 20); err != nil {
		t.Fatal(err)
	}
	p, _ := s.Get(id)
	if p.ImageX != 20 || p.ImageY != 20 {
		t.Errorf("image point = (%g, %g), want (20, 20)", p.ImageX, p.ImageY)
	}
}
