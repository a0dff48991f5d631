// Package api 暴露兑换服务的 REST 接口：提交与查询兑换任务、只读报价、
// 代币行情、钱包信息、兑换历史以及 Prometheus 指标。
package api
