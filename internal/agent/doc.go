// Package agent 是兑换服务的请求级调度器：每个请求都从钱包提供者解析签名者，
// 再把动作分发给兑换引擎、行情索引或链上只读查询，并记录兑换历史。
// 对话层自行把自然语言转换为结构化的 Request，再交给 Execute。
package agent
