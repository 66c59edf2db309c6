package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErr "github.com/neoncad/engine/pkg/errors"
)

func TestVisibility(t *testing.T) {
	sess := NewSession()
	a := Entity{GroupID: 1}
	b := Entity{GroupID: 2}

	assert.True(t, sess.Visible(b))

	sess.ShowAllGroups = false
	assert.True(t, sess.Visible(a))
	assert.False(t, sess.Visible(b))
	assert.False(t, sess.LabelVisible(b))

	sess.ShowMeasurements = false
	assert.False(t, sess.LabelVisible(a))
}

func TestCableLabel(t *testing.T) {
	cases := []struct {
		spec CableSpec
		want string
	}{
		{CableSpec{Category: "power", Voltage: "10", Mark: "АСБ 3х95"}, "10 кВ (АСБ 3х95)"},
		{CableSpec{Category: "low_current", Subcategory: "lan"}, "LAN"},
		{CableSpec{Category: "low_current", Subcategory: "security"}, "СБ"},
		{CableSpec{Category: "low_current"}, "Слаботочка"},
		{CableSpec{Category: "fiber", Mark: "ОКЛ-8"}, "ВОЛС (ОКЛ-8)"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.spec.Label())
	}

	assert.Equal(t, "power|ground|10|АСБ", CableSpec{Category: "power", InstallMethod: "ground", Voltage: "10", Mark: "АСБ"}.Key())
	assert.Equal(t, "low_current|air|lan|", CableSpec{Category: "low_current", InstallMethod: "air", Subcategory: "lan"}.Key())
}

func TestApplyTaskReopen(t *testing.T) {
	st, label, color := ApplyTask(nil, TaskActive, "Проверить опору", "")
	assert.False(t, st.Reopened)
	assert.Equal(t, "Проверить опору", label)
	assert.Equal(t, "#00AEEF", color)

	st, label, color = ApplyTask(&st, TaskDone, "Проверить опору", "ok")
	assert.False(t, st.Reopened)
	assert.Equal(t, "Проверить опору", label)
	assert.Equal(t, "#00CC44", color)

	st, label, _ = ApplyTask(&st, TaskActive, "Проверить опору", "again")
	assert.True(t, st.Reopened)
	assert.Equal(t, "🔄 Проверить опору", label)

	// stays reopened while active
	st, _, _ = ApplyTask(&st, TaskActive, "Проверить опору", "")
	assert.True(t, st.Reopened)

	st, label, color = ApplyTask(&st, TaskCanceled, "Проверить опору", "")
	assert.False(t, st.Reopened)
	assert.Equal(t, "Проверить опору", label)
	assert.Equal(t, "#FF4444", color)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Опора", Entity{Kind: KindPoint, Meta: Metadata{Subtype: SubtypePole}}.DisplayName())
	assert.Equal(t, "Объект", Entity{Kind: KindPoint, Meta: Metadata{Subtype: "unknown"}}.DisplayName())
	assert.Equal(t, "Линия", Entity{Kind: KindLine}.DisplayName())
	assert.Equal(t, "ТП-12", Entity{Kind: KindPoint, Label: "ТП-12"}.DisplayName())
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := NewStore()
	s.AddGroup("")
	_, err := s.Create(EntityInput{
		Kind:     KindLine,
		GroupID:  2,
		Geometry: []Coord{C(55.75, 37.61), C(55.76, 37.62)},
		Style:    Style{Color: "#00AAFF", Width: 5, Opacity: 1, Dash: "dash"},
		Label:    "10 кВ",
		Meta:     Metadata{Cable: &CableSpec{Category: "power", InstallMethod: "air", Voltage: "10"}},
	})
	require.NoError(t, err)
	_, err = s.Create(EntityInput{
		Kind:     KindPoint,
		Geometry: []Coord{C(55.75, 37.61)},
		Style:    Style{Width: 6, Opacity: 1, Dash: "solid"},
		Meta:     Metadata{Subtype: SubtypeTask, IconColor: "#00AEEF", Task: &TaskState{Status: TaskActive, Text: "t"}},
	})
	require.NoError(t, err)
	// explicit zero style values survive the round trip
	_, err = s.Create(EntityInput{
		Kind:     KindLine,
		Geometry: []Coord{C(55.7, 37.6), C(55.71, 37.6)},
		Style:    Style{Color: "#FFFFFF"},
	})
	require.NoError(t, err)

	sess := NewSession()
	sess.ShowAllGroups = false
	sess.ActiveGroupID = 2
	snap := Capture(s, sess)

	b, err := snap.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(b), `[55.75,37.61]`)

	decoded, err := DecodeSnapshot(b)
	require.NoError(t, err)
	assert.Equal(t, snap, *decoded)
	assert.Equal(t, Style{Color: "#FFFFFF"}, decoded.Entities[2].Style)

	other := NewStore()
	require.NoError(t, other.Replace(decoded.Groups, decoded.Entities))
	assert.Equal(t, s.Entities(), other.Entities())
	assert.Equal(t, s.Groups(), other.Groups())
}

func TestSnapshotNormalize(t *testing.T) {
	snap := Blank()
	snap.Entities = []Entity{
		{ID: "a", Kind: KindPolygon, Geometry: []Coord{C(0, 0), C(0, 1), C(1, 1)}},
		{Kind: KindPoint, GroupID: 1, Geometry: []Coord{C(0, 0)}},
	}
	out, err := snap.Normalize()
	require.NoError(t, err)
	assert.Len(t, out.Entities[0].Geometry, 4, "ring is closed")
	assert.Len(t, snap.Entities[0].Geometry, 3, "input is untouched")
	assert.Equal(t, 1, out.Entities[0].GroupID)
	assert.NotEmpty(t, out.Entities[1].ID)

	cases := []struct {
		name   string
		mutate func(*Snapshot)
		code   appErr.Code
	}{
		{"short line", func(s *Snapshot) {
			s.Entities = []Entity{{ID: "l", Kind: KindLine, Geometry: []Coord{C(0, 0)}}}
		}, appErr.CodeInvalidGeometry},
		{"unknown kind", func(s *Snapshot) {
			s.Entities = []Entity{{ID: "b", Kind: "banana", Geometry: []Coord{C(0, 0)}}}
		}, appErr.CodeInvalid},
		{"unknown group", func(s *Snapshot) {
			s.Entities = []Entity{{ID: "p", Kind: KindPoint, GroupID: 99, Geometry: []Coord{C(0, 0)}}}
		}, appErr.CodeInvalid},
		{"duplicate id", func(s *Snapshot) {
			p := Entity{ID: "p", Kind: KindPoint, Geometry: []Coord{C(0, 0)}}
			s.Entities = []Entity{p, p}
		}, appErr.CodeInvalid},
		{"active group missing", func(s *Snapshot) { s.ActiveGroupID = 7 }, appErr.CodeInvalid},
		{"no groups", func(s *Snapshot) { s.Groups = nil }, appErr.CodeInvalid},
		{"duplicate group", func(s *Snapshot) { s.Groups = append(s.Groups, s.Groups[0]) }, appErr.CodeInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Blank()
			tc.mutate(&s)
			_, err := s.Normalize()
			require.Error(t, err)
			assert.Equal(t, tc.code, appErr.CodeOf(err))
		})
	}
}

func TestDecodeSnapshotDefaults(t *testing.T) {
	snap, err := DecodeSnapshot([]byte(`{"entities":[{"id":"x","kind":"polygon","geometry":[[0,0],[0,1],[1,1],[0,0]],"style":{"color":"#FF3333"}}]}`))
	require.NoError(t, err)

	assert.Equal(t, DefaultGroups(), snap.Groups)
	assert.Equal(t, 1, snap.ActiveGroupID)
	assert.True(t, snap.ShowAllGroups)
	require.Len(t, snap.Entities, 1)
	e := snap.Entities[0]
	assert.Equal(t, 1, e.GroupID)
	assert.Equal(t, Style{Color: "#FF3333", Width: 6, Opacity: 0.3, Dash: "solid"}, e.Style)
}

func TestDecodeLegacySnapshot(t *testing.T) {
	raw := `{
	  "objects": [
	    {"type":"Polyline","groupId":2,"coords":[[55.1,37.1],[55.2,37.2]],"color":"#FF8800","text":"10 кВ",
	     "cableData":{"type":"power","install":"ground","voltage":"10","mark":""}},
	    {"type":"Point","groupId":1,"subtype":"pole","coords":[55.1,37.1],"text":"","iconColor":"#FFD700"},
	    {"type":"Point","subtype":"task","coords":[55.3,37.3],"text":"🔄 fix","iconColor":"#00AEEF",
	     "taskData":{"status":"active","text":"fix","comment":"","reopened":true}},
	    {"type":"Text","coords":[55.4,37.4],"text":"Подпись"},
	    {"type":"Polygon","coords":[[[55,37],[55,37.1],[55.1,37.1],[55,37]]],"color":"#00CC44"},
	    {"type":"Circle","coords":[1,2]}
	  ],
	  "groups":[{"id":1,"name":"Группа 1"},{"id":2,"name":"Группа 2"}],
	  "activeGroupId":2
	}`
	snap, err := DecodeSnapshot([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, 1, snap.Skipped)
	assert.Equal(t, 2, snap.ActiveGroupID)
	assert.True(t, snap.ShowAllGroups)
	require.Len(t, snap.Entities, 5)

	l := snap.Entities[0]
	assert.Equal(t, KindLine, l.Kind)
	assert.Equal(t, 2, l.GroupID)
	assert.Equal(t, []Coord{C(55.1, 37.1), C(55.2, 37.2)}, l.Geometry)
	assert.Equal(t, Style{Color: "#FF8800", Width: 6, Opacity: 1, Dash: "solid"}, l.Style)
	require.NotNil(t, l.Meta.Cable)
	assert.Equal(t, "power|ground|10|", l.Meta.Cable.Key())

	assert.Equal(t, SubtypePole, snap.Entities[1].Meta.Subtype)

	task := snap.Entities[2]
	assert.Equal(t, 1, task.GroupID)
	require.NotNil(t, task.Meta.Task)
	assert.True(t, task.Meta.Task.Reopened)

	txt := snap.Entities[3]
	assert.Equal(t, KindText, txt.Kind)
	assert.Equal(t, "Подпись", txt.Label)
	assert.Equal(t, Colors[0], txt.Meta.IconColor)

	poly := snap.Entities[4]
	assert.Equal(t, KindPolygon, poly.Kind)
	assert.Len(t, poly.Geometry, 4)
	assert.Equal(t, 0.3, poly.Style.Opacity)

	s := NewStore()
	require.NoError(t, s.Replace(snap.Groups, snap.Entities))
	assert.Equal(t, 5, s.Len())
}
