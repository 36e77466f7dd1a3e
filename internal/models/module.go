package models

import "gorm.io/datatypes"

// ModuleList 模块标识集合，按JSON列存储
type ModuleList = datatypes.JSONSlice[string]

// 功能模块枚举 - 封闭集合，枚举外的键在交集运算中一律被丢弃
const (
	ModuleDashboard = "DASHBOARD"

	ModuleCRMLeads     = "CRM_LEADS"
	ModuleCRMCustomers = "CRM_CUSTOMERS"
	ModuleCRMDeals     = "CRM_DEALS"

	ModuleERPSales      = "ERP_SALES"
	ModuleERPInventory  = "ERP_INVENTORY"
	ModuleERPPurchasing = "ERP_PURCHASING"
	ModuleERPAccounts   = "ERP_ACCOUNTS"

	ModuleReports  = "REPORTS"
	ModuleSettings = "SETTINGS"
)

// ModuleGroup 模块分组描述（供前端模块选择器展示）
type ModuleGroup struct {
	Group   string   `json:"group"`
	Modules []string `json:"modules"`
}

// AllModuleGroups 分组顺序固定：Core、CRM、ERP、Common
var AllModuleGroups = []ModuleGroup{
	{Group: "Core", Modules: []string{ModuleDashboard}},
	{Group: "CRM", Modules: []string{ModuleCRMLeads, ModuleCRMCustomers, ModuleCRMDeals}},
	{Group: "ERP", Modules: []string{ModuleERPSales, ModuleERPInventory, ModuleERPPurchasing, ModuleERPAccounts}},
	{Group: "Common", Modules: []string{ModuleReports, ModuleSettings}},
}

var validModules = map[string]struct{}{
	ModuleDashboard:     {},
	ModuleCRMLeads:      {},
	ModuleCRMCustomers:  {},
	ModuleCRMDeals:      {},
	ModuleERPSales:      {},
	ModuleERPInventory:  {},
	ModuleERPPurchasing: {},
	ModuleERPAccounts:   {},
	ModuleReports:       {},
	ModuleSettings:      {},
}

// IsValidModule 判断模块键是否在枚举内
func IsValidModule(key string) bool {
	_, ok := validModules[key]
	return ok
}

// SanitizeModules 丢弃未知模块键并去重，保持输入顺序
func SanitizeModules(in []string) ModuleList {
	out := make(ModuleList, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, key := range in {
		if !IsValidModule(key) {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

// IntersectModules 安全赋值运算：requested ∩ enabled
// 既用于给成员分配模块（不能分配租户未订阅的模块），也用于会话解析时
// 计算有效模块集。纯集合运算，结果保持requested的顺序，输入相同则输出相同。
func IntersectModules(requested, enabled []string) ModuleList {
	enabledSet := make(map[string]struct{}, len(enabled))
	for _, key := range enabled {
		enabledSet[key] = struct{}{}
	}

	out := make(ModuleList, 0, len(requested))
	seen := make(map[string]struct{}, len(requested))
	for _, key := range requested {
		if !IsValidModule(key) {
			continue
		}
		if _, ok := enabledSet[key]; !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}
