package card

import "strings"

// Category 决定模板归属的人员类别，以及编辑器可选的语义字段集合。
type Category string

const (
	MaleStudent    Category = "male_student"
	FemaleStudent  Category = "female_student"
	MaleTeacher    Category = "male_teacher"
	FemaleTeacher  Category = "female_teacher"
	MaleEmployee   Category = "male_employee"
	FemaleEmployee Category = "female_employee"
)

// Categories 列出全部合法类别（顺序固定，便于 CLI 与测试遍历）。
var Categories = []Category{
	MaleStudent,
	FemaleStudent,
	MaleTeacher,
	FemaleTeacher,
	MaleEmployee,
	FemaleEmployee,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Role groups male/female categories of the same population.
type Role string

const (
	RoleStudent  Role = "student"
	RoleTeacher  Role = "teacher"
	RoleEmployee Role = "employee"
)

// Role 返回类别对应的人员角色。
func (c Category) Role() Role {
	switch c {
	case MaleStudent, FemaleStudent:
		return RoleStudent
	case MaleTeacher, FemaleTeacher:
		return RoleTeacher
	case MaleEmployee, FemaleEmployee:
		return RoleEmployee
	default:
		return ""
	}
}

// SemanticName 是字段的语义键，决定渲染时从人员记录中取什么数据。
type SemanticName string

const (
	NameFullName           SemanticName = "fullName"
	NameFirstName          SemanticName = "firstName"
	NameLastName           SemanticName = "lastName"
	NameFatherName         SemanticName = "fatherName"
	NameRegistrationNumber SemanticName = "registrationNumber"
	NameBirthDate          SemanticName = "birthDate"
	NameAge                SemanticName = "age"
	NameRegistrationDate   SemanticName = "registrationDate"
	NameHireDate           SemanticName = "hireDate"
	NameCourse             SemanticName = "course"
	NameSubject            SemanticName = "subject"
	NameExperienceYears    SemanticName = "experienceYears"
	NameDepartment         SemanticName = "department"
	NameJobTitle           SemanticName = "jobTitle"
	NameEmail              SemanticName = "email"
	NamePhone              SemanticName = "phone"
	NameAddress            SemanticName = "address"
	NameNationalID         SemanticName = "nationalId"
	NameAcademyName        SemanticName = "academyName"
	NameStudentPhoto       SemanticName = "studentPhoto"
	NameTeacherPhoto       SemanticName = "teacherPhoto"
	NameEmployeePhoto      SemanticName = "employeePhoto"
	NameQRCode             SemanticName = "qrCode"
)

// IsPhoto reports whether the name denotes a photo slot.
func (n SemanticName) IsPhoto() bool {
	return strings.HasSuffix(string(n), "Photo")
}

// VocabularyEntry 描述编辑器可添加的一个语义字段。
type VocabularyEntry struct {
	Name  SemanticName `json:"name"`
	Kind  Kind         `json:"kind"`
	Label string       `json:"label"`
}

var commonEntries = []VocabularyEntry{
	{Name: NameFullName, Kind: KindText, Label: "الاسم الكامل"},
	{Name: NameFirstName, Kind: KindText, Label: "الاسم الأول"},
	{Name: NameLastName, Kind: KindText, Label: "الكنية"},
	{Name: NameFatherName, Kind: KindText, Label: "اسم الأب"},
	{Name: NameRegistrationNumber, Kind: KindText, Label: "رقم التسجيل"},
	{Name: NameBirthDate, Kind: KindDate, Label: "تاريخ الميلاد"},
	{Name: NameAge, Kind: KindNumber, Label: "العمر"},
	{Name: NameEmail, Kind: KindText, Label: "البريد الإلكتروني"},
	{Name: NamePhone, Kind: KindText, Label: "رقم الهاتف"},
	{Name: NameAddress, Kind: KindText, Label: "العنوان"},
	{Name: NameNationalID, Kind: KindText, Label: "الرقم الوطني"},
	{Name: NameAcademyName, Kind: KindText, Label: "اسم الأكاديمية"},
	{Name: NameQRCode, Kind: KindQRCode, Label: "رمز QR"},
}

var roleEntries = map[Role][]VocabularyEntry{
	RoleStudent: {
		{Name: NameRegistrationDate, Kind: KindDate, Label: "تاريخ التسجيل"},
		{Name: NameCourse, Kind: KindText, Label: "الدورة"},
		{Name: NameStudentPhoto, Kind: KindImage, Label: "صورة الطالب"},
	},
	RoleTeacher: {
		{Name: NameHireDate, Kind: KindDate, Label: "تاريخ التعيين"},
		{Name: NameSubject, Kind: KindText, Label: "المادة"},
		{Name: NameExperienceYears, Kind: KindNumber, Label: "سنوات الخبرة"},
		{Name: NameTeacherPhoto, Kind: KindImage, Label: "صورة المدرس"},
	},
	RoleEmployee: {
		{Name: NameHireDate, Kind: KindDate, Label: "تاريخ التعيين"},
		{Name: NameDepartment, Kind: KindText, Label: "القسم"},
		{Name: NameJobTitle, Kind: KindText, Label: "المسمى الوظيفي"},
		{Name: NameEmployeePhoto, Kind: KindImage, Label: "صورة الموظف"},
	},
}

// Vocabulary 返回某类别可用的语义字段，未知类别返回 nil。
func Vocabulary(c Category) []VocabularyEntry {
	role := c.Role()
	if role == "" {
		return nil
	}
	extra := roleEntries[role]
	out := make([]VocabularyEntry, 0, len(commonEntries)+len(extra))
	out = append(out, commonEntries...)
	out = append(out, extra...)
	return out
}

// Lookup finds name in the category's vocabulary.
func Lookup(c Category, name SemanticName) (VocabularyEntry, bool) {
	for _, entry := range Vocabulary(c) {
		if entry.Name == name {
			return entry, true
		}
	}
	return VocabularyEntry{}, false
}
