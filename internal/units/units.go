// Package units 在卡片数据模型（毫米）与屏幕/打印表面（像素）之间换算。
package units

// PxPerMM 是 96 DPI 参考密度下每毫米的像素数。
const PxPerMM = 96.0 / 25.4

// MMToPx 将毫米换算为像素。
func MMToPx(mm float64) float64 {
	return mm * PxPerMM
}

// PxToMM 将像素换算为毫米。
func PxToMM(px float64) float64 {
	return px / PxPerMM
}
