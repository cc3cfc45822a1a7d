package workflow

import "eagle-studio/internal/media"

type EntityKind string

const (
	KindShot        EntityKind = "shot"
	KindSlot        EntityKind = "slot"
	KindCharacter   EntityKind = "character"
	KindOutfit      EntityKind = "outfit"
	KindEnvironment EntityKind = "environment"
	KindCanvas      EntityKind = "canvas"
	KindLogo        EntityKind = "logo"
)

// Ticket identifies one generation request for one entity. A response is written back only while
// the ticket is still the newest one for that entity and the session has not been restarted.
type Ticket struct {
	Nonce string     `json:"nonce"`
	Kind  EntityKind `json:"kind"`
	ID    string     `json:"id"`
	Gen   uint64     `json:"gen"`
}

// Begin bumps the entity's generation counter and returns the ticket for the new request.
func (s *Session) Begin(kind EntityKind, id string) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gen := s.data.genRef(kind, id)
	if gen == nil {
		return Ticket{}, ErrNotFound
	}
	*gen++
	return Ticket{Nonce: s.nonce, Kind: kind, ID: id, Gen: *gen}, nil
}

// Commit runs fn only when t is current. Stale tickets return ErrStale and leave data untouched.
func (s *Session) Commit(t Ticket, fn func(*Data) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.Nonce != s.nonce {
		return ErrStale
	}
	gen := s.data.genRef(t.Kind, t.ID)
	if gen == nil {
		return ErrNotFound
	}
	if *gen != t.Gen {
		return ErrStale
	}
	if err := fn(&s.data); err != nil {
		return err
	}
	s.touchLocked()
	return nil
}

func (s *Session) ApplyShotImage(t Ticket, img media.Image) error {
	return s.Commit(t, func(d *Data) error {
		i := d.shotIndex(t.ID)
		d.Shots[i].Image = img.Ptr()
		return nil
	})
}

func (s *Session) ApplySlotImage(t Ticket, img media.Image) error {
	return s.Commit(t, func(d *Data) error {
		i := d.slotIndex(t.ID)
		d.AmazonSlots[i].Image = img.Ptr()
		return nil
	})
}

func (s *Session) ApplyTurnaround(t Ticket, img media.Image) error {
	return s.Commit(t, func(d *Data) error {
		i := d.characterIndex(t.ID)
		d.Characters[i].Turnaround = img.Ptr()
		return nil
	})
}

func (s *Session) ApplyOutfit(t Ticket, img media.Image) error {
	return s.Commit(t, func(d *Data) error {
		i := d.characterIndex(t.ID)
		d.Characters[i].Outfitted = img.Ptr()
		return nil
	})
}

func (s *Session) ApplyEnvironmentAnchor(t Ticket, img media.Image) error {
	return s.Commit(t, func(d *Data) error {
		i := d.environmentIndex(t.ID)
		d.Environments[i].Anchor = img.Ptr()
		return nil
	})
}

func (s *Session) ApplyCanvasCandidates(t Ticket, imgs []media.Image) error {
	return s.Commit(t, func(d *Data) error {
		i := d.canvasIndex(t.ID)
		d.Storefront.Canvases[i].Candidates = append([]media.Image(nil), imgs...)
		return nil
	})
}

func (s *Session) ApplyLogos(t Ticket, imgs []media.Image) error {
	return s.Commit(t, func(d *Data) error {
		d.Storefront.Logos = append([]media.Image(nil), imgs...)
		d.Storefront.SelectedLogo = -1
		if len(imgs) > 0 {
			d.Storefront.SelectedLogo = 0
		}
		return nil
	})
}

func (d *Data) genRef(kind EntityKind, id string) *uint64 {
	switch kind {
	case KindShot:
		if i := d.shotIndex(id); i >= 0 {
			return &d.Shots[i].Gen
		}
	case KindSlot:
		if i := d.slotIndex(id); i >= 0 {
			return &d.AmazonSlots[i].Gen
		}
	case KindCharacter:
		if i := d.characterIndex(id); i >= 0 {
			return &d.Characters[i].Gen
		}
	case KindOutfit:
		if i := d.characterIndex(id); i >= 0 {
			return &d.Characters[i].OutfitGen
		}
	case KindEnvironment:
		if i := d.environmentIndex(id); i >= 0 {
			return &d.Environments[i].Gen
		}
	case KindCanvas:
		if i := d.canvasIndex(id); i >= 0 {
			return &d.Storefront.Canvases[i].Gen
		}
	case KindLogo:
		return &d.Storefront.LogoGen
	}
	return nil
}

func (d *Data) shotIndex(id string) int {
	for i := range d.Shots {
		if d.Shots[i].ID == id {
			return i
		}
	}
	return -1
}

func (d *Data) slotIndex(id string) int {
	for i := range d.AmazonSlots {
		if d.AmazonSlots[i].ID == id {
			return i
		}
	}
	return -1
}

func (d *Data) characterIndex(id string) int {
	for i := range d.Characters {
		if d.Characters[i].ID == id {
			return i
		}
	}
	return -1
}

func (d *Data) environmentIndex(id string) int {
	for i := range d.Environments {
		if d.Environments[i].ID == id {
			return i
		}
	}
	return -1
}

func (d *Data) canvasIndex(id string) int {
	for i := range d.Storefront.Canvases {
		if d.Storefront.Canvases[i].ID == id {
			return i
		}
	}
	return -1
}

// Environment looks up an environment by id.
func (d Data) Environment(id string) (PlotEnvironment, bool) {
	if i := d.environmentIndex(id); i >= 0 {
		return d.Environments[i], true
	}
	return PlotEnvironment{}, false
}

func (d Data) Shot(id string) (RemappedShot, bool) {
	if i := d.shotIndex(id); i >= 0 {
		return d.Shots[i], true
	}
	return RemappedShot{}, false
}

func (d Data) Slot(id string) (AmazonImageConfig, bool) {
	if i := d.slotIndex(id); i >= 0 {
		return d.AmazonSlots[i], true
	}
	return AmazonImageConfig{}, false
}

func (d Data) Character(id string) (PlotCharacter, bool) {
	if i := d.characterIndex(id); i >= 0 {
		return d.Characters[i], true
	}
	return PlotCharacter{}, false
}

func (d Data) Canvas(id string) (StorefrontCanvasConfig, bool) {
	if i := d.canvasIndex(id); i >= 0 {
		return d.Storefront.Canvases[i], true
	}
	return StorefrontCanvasConfig{}, false
}
