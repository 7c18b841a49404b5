package handler

// ── 业务错误码 ──
// 每个模块占一个千位段：节次 20xxx，课表 21xxx，条目 22xxx，导出 23xxx。
// handleXxxError 中未单独列出的业务错误交给 response.FromError 按分类落到段内 +1/+2/+3。

const (
	codePeriodBase    = 20000
	codeTimetableBase = 21000
	codeEntryBase     = 22000
	codeExportBase    = 23000
)
