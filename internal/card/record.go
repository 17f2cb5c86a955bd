package card

import "strings"

// 人员记录中常用的键。
const (
	KeyFirstName          = "firstName"
	KeyLastName           = "lastName"
	KeyFatherName         = "fatherName"
	KeyRegistrationNumber = "registrationNumber"
	KeyBirthDate          = "birthDate"
	KeyRegistrationDate   = "registrationDate"
	KeyHireDate           = "hireDate"
	KeyCourse             = "course"
	KeySubject            = "subject"
	KeyExperienceYears    = "experienceYears"
	KeyDepartment         = "department"
	KeyJobTitle           = "jobTitle"
	KeyEmail              = "email"
	KeyPhone              = "phone"
	KeyAddress            = "address"
	KeyNationalID         = "nationalId"
	KeyPhoto              = "photo"
)

// Record 是注册表单产生、本模块只读的人员数据：扁平的键值对加类别标签。
type Record struct {
	Category Category          `json:"category"`
	Values   map[string]string `json:"values"`
}

// Get returns the trimmed value for key, or "" when absent.
func (r Record) Get(key string) string {
	if r.Values == nil {
		return ""
	}
	return strings.TrimSpace(r.Values[key])
}

// ID 以注册号作为记录身份。
func (r Record) ID() string {
	return r.Get(KeyRegistrationNumber)
}

// FullName 由名与姓拼接，缺一时不留多余空格。
func (r Record) FullName() string {
	return strings.TrimSpace(r.Get(KeyFirstName) + " " + r.Get(KeyLastName))
}

// Photo 返回照片槽的内容：优先使用与语义名同名的键，其次通用的 photo 键。
func (r Record) Photo(name SemanticName) string {
	if v := r.Get(string(name)); v != "" {
		return v
	}
	return r.Get(KeyPhoto)
}
