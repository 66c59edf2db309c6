package canvas

import "strconv"

// Point subtypes known to the BOM.
const (
	SubtypePole       = "pole"
	SubtypeLight      = "light"
	SubtypeCabinet    = "cabinet"
	SubtypeFlag       = "flag"
	SubtypeStar       = "star"
	SubtypeSubstation = "substation"
	SubtypeSubscriber = "subscriber"
	SubtypeTask       = "task"
)

// Colors is the stroke palette.
var Colors = []string{"#FF3333", "#FF8800", "#FFD700", "#00CC44", "#00AAFF", "#0055FF", "#9900FF", "#FFFFFF"}

// TaskColors maps task status to icon color.
var TaskColors = map[TaskStatus]string{
	TaskActive:   "#00AEEF",
	TaskDone:     "#00CC44",
	TaskCanceled: "#FF4444",
}

var defaultNames = map[string]string{
	SubtypePole:       "Опора",
	SubtypeLight:      "Светильник",
	SubtypeCabinet:    "Шкаф",
	SubtypeFlag:       "Флаг",
	SubtypeStar:       "Звезда",
	SubtypeSubstation: "ТП",
	SubtypeSubscriber: "Абонент",
	SubtypeTask:       "Новая задача",
	"line":            "Линия",
	"polygon":         "Зона (Полигон)",
	"text":            "Текст",
}

// DefaultName returns the display name used when an entity has no label.
func DefaultName(kind Kind, subtype string) string {
	switch kind {
	case KindLine, KindPolygon, KindText:
		return defaultNames[string(kind)]
	}
	if n, ok := defaultNames[subtype]; ok {
		return n
	}
	return "Объект"
}

// Style defaults applied to persisted entities missing a value.
const (
	DefaultWidth          = 6
	DefaultOpacity        = 1.0
	DefaultPolygonOpacity = 0.3
	DefaultDash           = "solid"
)

// DefaultGroups is the group list of a fresh project.
func DefaultGroups() []Group {
	return []Group{{ID: 1, Name: GroupName(1)}}
}

// GroupName is the generated name of group id.
func GroupName(id int) string {
	return "Группа " + strconv.Itoa(id)
}

// Translations map cable vocabulary to the names printed in reports.
var Translations = map[string]string{
	"power":       "Силовой",
	"low_current": "Слаботочка",
	"fiber":       "ВОЛС",
	"air":         "Воздушная",
	"ground":      "В грунте",
	"water":       "Подводная",
	"building":    "По фасаду",
	"phone":       "Телефон",
	"lan":         "СКС/ЛВС",
	"coax":        "Коаксиал",
	"security":    "СБ/ОПС",
	"dist":        "Распред.",
	"main":        "Магистраль",
	"drop":        "Дроп",
}

// Translate returns the report name for key, or key itself.
func Translate(key string) string {
	if t, ok := Translations[key]; ok {
		return t
	}
	return key
}
