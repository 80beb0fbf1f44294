package orm

import (
	"context"
	"fmt"

	core "auditbase/data/db"
	"auditbase/data/db/dialect"
	"auditbase/logging"
)

// Context 绑定数据库与模型的会话工厂，可并发使用。
type Context struct {
	db           core.IDatabase
	model        *Model
	dialect      dialect.Dialect
	caps         Capabilities
	interceptors []any
	logger       logging.Logger
}

// NewContext 创建 Context。
func NewContext(db core.IDatabase, model *Model, opts ...ContextOption) *Context {
	d := dialect.FromDatabase(db)
	c := &Context{
		db:      db,
		model:   model,
		dialect: d,
		caps:    capabilitiesOf(d),
		logger:  logging.Component("orm"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Context) Database() core.IDatabase   { return c.db }
func (c *Context) Model() *Model              { return c.model }
func (c *Context) Dialect() dialect.Dialect   { return c.dialect }
func (c *Context) Capabilities() Capabilities { return c.caps }
func (c *Context) Logger() logging.Logger     { return c.logger }

// NewSession 创建新的工作单元，继承 Context 上注册的拦截器。
func (c *Context) NewSession() *Session {
	s := newSession(c)
	for _, i := range c.interceptors {
		if err := s.AddInterceptor(i); err != nil {
			c.logger.Warn(context.Background(), "ignore interceptor", logging.Error(err))
		}
	}
	return s
}

func errNotInterceptor(v any) error {
	return fmt.Errorf("orm: %T implements neither ISaveChangesInterceptor nor ISavedChangesInterceptor", v)
}
