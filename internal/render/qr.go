package render

import (
	"encoding/json"
	"fmt"

	"github.com/skip2/go-qrcode"

	"academyCards/internal/card"
)

// QRPayload 是二维码中编码的紧凑 JSON。
type QRPayload struct {
	Name               string `json:"name"`
	RegistrationNumber string `json:"registrationNumber"`
	Course             string `json:"course"`
	RegistrationDate   string `json:"registrationDate"`
}

// NewQRPayload 从人员记录中提取二维码内容；教师/员工没有课程时使用科目或部门。
func NewQRPayload(rec card.Record) QRPayload {
	course := rec.Get(card.KeyCourse)
	if course == "" {
		course = rec.Get(card.KeySubject)
	}
	if course == "" {
		course = rec.Get(card.KeyDepartment)
	}
	regDate := rec.Get(card.KeyRegistrationDate)
	if regDate == "" {
		regDate = rec.Get(card.KeyHireDate)
	}
	return QRPayload{
		Name:               sanitize(rec.FullName()),
		RegistrationNumber: rec.ID(),
		Course:             sanitize(course),
		RegistrationDate:   regDate,
	}
}

// QREncoder turns a payload into PNG bytes of roughly size×size pixels.
type QREncoder func(payload []byte, size int) ([]byte, error)

// EncodeQRCode 是默认的二维码编码器（中等纠错级别）。
func EncodeQRCode(payload []byte, size int) ([]byte, error) {
	png, err := qrcode.Encode(string(payload), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}

func qrDataURI(encode QREncoder, rec card.Record, size int) (string, error) {
	payload, err := json.Marshal(NewQRPayload(rec))
	if err != nil {
		return "", fmt.Errorf("marshal qr payload: %w", err)
	}
	png, err := encode(payload, size)
	if err != nil {
		return "", err
	}
	return EncodeDataURI("image/png", png), nil
}
