package errcode

// 业务码：
// - 0：成功
// - 4xxx：可继续的告警（缺少模板、素材缺失、超出纸张容量）
// - 5xxx：系统错误，任务中断
const (
	OK               = 0
	TemplateMissing  = 4001
	ResourceMissing  = 4004
	CapacityExceeded = 4009
	SystemError      = 5000
)

var texts = map[int]string{
	OK:               "ok",
	TemplateMissing:  "no template for this category",
	ResourceMissing:  "some images or qr codes could not be rendered",
	CapacityExceeded: "sheet capacity exceeded",
	SystemError:      "internal error",
}

// Text 返回业务码的默认说明，未知码按 4xxx/5xxx 归类。
func Text(code int) string {
	if t, ok := texts[code]; ok {
		return t
	}
	if Recoverable(code) {
		return "warning"
	}
	return texts[SystemError]
}

// Recoverable 表示 4xxx 告警：流程继续，结果可能不完整。
func Recoverable(code int) bool {
	return code >= 4000 && code < 5000
}
