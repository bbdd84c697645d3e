package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ldsec/bindlib/pkg/binding"
	"github.com/ldsec/bindlib/pkg/library"
)

type pointView struct {
	Key         string     `json:"key,omitempty"`
	AnchorID    string     `json:"anchor_id"`
	Position    [3]float32 `json:"position"`
	Orientation [4]float32 `json:"orientation"`
}

func newPointView(key string, rec binding.PointRecord) pointView {
	return pointView{Key: key, AnchorID: rec.AnchorID, Position: rec.Position, Orientation: rec.Orientation}
}

func (p pointView) String() string {
	s := fmt.Sprintf("anchor=%s pos=%s rot=%s", p.AnchorID, formatFloats(p.Position[:]), formatFloats(p.Orientation[:]))
	if len(p.Key) > 0 {
		s = p.Key + ": " + s
	}
	return s
}

type sceneView struct {
	Key    string      `json:"key"`
	Points []pointView `json:"points"`
}

// libraryView is the printed form of a library.
type libraryView struct {
	ID     string      `json:"id"`
	Points []pointView `json:"points"`
	Scenes []sceneView `json:"scenes"`
}

func newLibraryView(lib library.Library) libraryView {
	v := libraryView{ID: lib.ID(), Points: make([]pointView, 0, lib.PointCount()), Scenes: make([]sceneView, 0, lib.SceneCount())}
	for _, key := range lib.PointKeys() {
		if rec, ok := lib.TryGetPoint(key); ok {
			v.Points = append(v.Points, newPointView(key, rec))
		}
	}
	for _, key := range lib.SceneKeys() {
		rec, ok := lib.TryGetScene(key)
		if !ok {
			continue
		}
		sv := sceneView{Key: key, Points: make([]pointView, 0, len(rec.Points))}
		for _, p := range rec.Points {
			sv.Points = append(sv.Points, newPointView("", p))
		}
		v.Scenes = append(v.Scenes, sv)
	}
	return v
}

func (v libraryView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "library %s\n", v.ID)
	fmt.Fprintf(&b, "points (%d)\n", len(v.Points))
	for _, p := range v.Points {
		fmt.Fprintf(&b, "  %s\n", p)
	}
	fmt.Fprintf(&b, "scenes (%d)", len(v.Scenes))
	for _, s := range v.Scenes {
		fmt.Fprintf(&b, "\n  %s:", s.Key)
		for _, p := range s.Points {
			fmt.Fprintf(&b, "\n    %s", p)
		}
	}
	return b.String()
}

// changeView reports a mutation of a library.
type changeView struct {
	Action  string `json:"action"`
	Library string `json:"library"`
	Kind    string `json:"kind,omitempty"`
	Key     string `json:"key,omitempty"`
}

func (c changeView) String() string {
	if len(c.Kind) == 0 {
		return fmt.Sprintf("%s library %q", c.Action, c.Library)
	}
	return fmt.Sprintf("%s %s %q in library %q", c.Action, c.Kind, c.Key, c.Library)
}

func formatFloats(fs []float32) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = strconv.FormatFloat(float64(f), 'g', -1, 32)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
