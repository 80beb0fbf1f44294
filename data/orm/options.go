package orm

import "auditbase/logging"

// Condition 表示基础查询条件，Expr 使用占位符 ?，Args 对应参数列表。
type Condition struct {
	Expr string
	Args []any
}

// Where 便捷构造 Condition。
func Where(expr string, args ...any) Condition {
	return Condition{Expr: expr, Args: args}
}

// OrderBy 表示排序字段。
type OrderBy struct {
	Column string
	Desc   bool
}

// ContextOption 配置 Context。
type ContextOption func(*Context)

// WithInterceptors 为 Context 创建的每个会话注册拦截器。
//
// 拦截器需实现 ISaveChangesInterceptor 或 ISavedChangesInterceptor（或两者），
// 其余类型在 NewSession 时被忽略并记录告警。
func WithInterceptors(interceptors ...any) ContextOption {
	return func(c *Context) {
		c.interceptors = append(c.interceptors, interceptors...)
	}
}

// WithLogger 设置日志器，默认使用 logging.Component("orm")。
func WithLogger(logger logging.Logger) ContextOption {
	return func(c *Context) {
		if logger != nil {
			c.logger = logger
		}
	}
}
