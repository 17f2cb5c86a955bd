package render

import (
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"academyCards/internal/card"
)

// 记录值来自外部注册表单，渲染前去掉所有标记。
var stripPolicy = bluemonday.StrictPolicy()

// academyName 出现在 academyName 字段上。
const academyName = "أكاديمية المستقبل"

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"02/01/2006",
	"2006/01/02",
}

func parseDate(value string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var arabicDigits = strings.NewReplacer(
	"0", "٠", "1", "١", "2", "٢", "3", "٣", "4", "٤",
	"5", "٥", "6", "٦", "7", "٧", "8", "٨", "9", "٩",
)

// Locale 控制日期与数字的显示格式。
type Locale struct {
	printer *message.Printer
	arabic  bool
}

// NewLocale parses a BCP 47 tag; unknown tags fall back to Arabic.
func NewLocale(tag string) Locale {
	t, err := language.Parse(tag)
	if err != nil {
		t = language.Arabic
	}
	base, _ := t.Base()
	return Locale{
		printer: message.NewPrinter(t),
		arabic:  base.String() == "ar",
	}
}

// FormatDate 以 d/m/yyyy（阿拉伯语使用阿拉伯-印度数字）或 ISO 格式输出日期；
// 无法解析的值原样返回。
func (l Locale) FormatDate(value string) string {
	t, ok := parseDate(value)
	if !ok {
		return value
	}
	if l.arabic {
		return arabicDigits.Replace(t.Format("2/1/2006"))
	}
	return t.Format("2006-01-02")
}

// FormatNumber 按语言环境格式化整数。
func (l Locale) FormatNumber(n int) string {
	return l.printer.Sprintf("%d", n)
}

func yearsBetween(from, to time.Time) int {
	years := to.Year() - from.Year()
	if to.Month() < from.Month() || (to.Month() == from.Month() && to.Day() < from.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// FieldText resolves the display text of a textual field. Every semantic
// name in the vocabulary has an explicit rule; names without a rule, and
// rules that produce an empty value, fall back to the field label.
func FieldText(f card.Field, rec card.Record, loc Locale, now time.Time) string {
	value := extract(f.Name, rec, loc, now)
	value = strings.TrimSpace(sanitize(value))
	if value == "" {
		value = f.Label
	}
	if value == "" {
		value = string(f.Name)
	}
	return value
}

func extract(name card.SemanticName, rec card.Record, loc Locale, now time.Time) string {
	switch name {
	case card.NameFullName:
		return rec.FullName()
	case card.NameFirstName:
		return rec.Get(card.KeyFirstName)
	case card.NameLastName:
		return rec.Get(card.KeyLastName)
	case card.NameFatherName:
		return rec.Get(card.KeyFatherName)
	case card.NameRegistrationNumber:
		return rec.Get(card.KeyRegistrationNumber)
	case card.NameBirthDate:
		return formatDateValue(rec.Get(card.KeyBirthDate), loc)
	case card.NameRegistrationDate:
		return formatDateValue(rec.Get(card.KeyRegistrationDate), loc)
	case card.NameHireDate:
		return formatDateValue(rec.Get(card.KeyHireDate), loc)
	case card.NameAge:
		birth, ok := parseDate(rec.Get(card.KeyBirthDate))
		if !ok {
			return ""
		}
		return loc.FormatNumber(yearsBetween(birth, now))
	case card.NameExperienceYears:
		n, err := strconv.Atoi(rec.Get(card.KeyExperienceYears))
		if err != nil {
			return rec.Get(card.KeyExperienceYears)
		}
		return loc.FormatNumber(n)
	case card.NameCourse:
		return rec.Get(card.KeyCourse)
	case card.NameSubject:
		return rec.Get(card.KeySubject)
	case card.NameDepartment:
		return rec.Get(card.KeyDepartment)
	case card.NameJobTitle:
		return rec.Get(card.KeyJobTitle)
	case card.NameEmail:
		return rec.Get(card.KeyEmail)
	case card.NamePhone:
		return rec.Get(card.KeyPhone)
	case card.NameAddress:
		return rec.Get(card.KeyAddress)
	case card.NameNationalID:
		return rec.Get(card.KeyNationalID)
	case card.NameAcademyName:
		return academyName
	case card.NameStudentPhoto, card.NameTeacherPhoto, card.NameEmployeePhoto, card.NameQRCode:
		// 非文字内容，放在文字字段上时显示标签。
		return ""
	default:
		return ""
	}
}

// sanitize 去掉标记；bluemonday 会转义实体，这里还原成纯文本，由输出端自行转义。
func sanitize(value string) string {
	return html.UnescapeString(stripPolicy.Sanitize(value))
}

func formatDateValue(value string, loc Locale) string {
	if value == "" {
		return ""
	}
	return loc.FormatDate(value)
}
