// Package rule 用 CEL 表达式实现折扣列表的过滤。
package rule

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"digigoods/internal/service/promotion/domain"
)

// CELFilterEngine 是 domain.FilterEngine 的 CEL 实现。表达式可以使用的变量：
// code, discount_type, percentage, remaining_uses, valid_from, valid_until, product_ids。
// 例如: discount_type == "GENERAL" && remaining_uses > 0
type CELFilterEngine struct {
	env *cel.Env
}

func NewCELFilterEngine() (*CELFilterEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("code", cel.StringType),
		cel.Variable("discount_type", cel.StringType),
		cel.Variable("percentage", cel.DoubleType),
		cel.Variable("remaining_uses", cel.IntType),
		cel.Variable("valid_from", cel.TimestampType),
		cel.Variable("valid_until", cel.TimestampType),
		cel.Variable("product_ids", cel.ListType(cel.IntType)),
	)
	if err != nil {
		return nil, fmt.Errorf("build cel env: %w", err)
	}
	return &CELFilterEngine{env: env}, nil
}

// Compile 实现了 domain.FilterEngine 接口。语法错误或结果不是 bool 时返回 ErrInvalidFilter。
func (e *CELFilterEngine) Compile(expr string) (domain.Predicate, error) {
	ast, iss := e.env.Compile(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidFilter, iss.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("%w: expression must evaluate to bool, got %s", domain.ErrInvalidFilter, ast.OutputType())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidFilter, err)
	}

	return func(d *domain.Discount) (bool, error) {
		ids := d.ApplicableProductIDs
		if ids == nil {
			ids = []int64{}
		}
		out, _, err := prg.Eval(map[string]interface{}{
			"code":           d.Code,
			"discount_type":  string(d.Type),
			"percentage":     d.Percentage.InexactFloat64(),
			"remaining_uses": int64(d.RemainingUses),
			"valid_from":     d.ValidFrom,
			"valid_until":    d.ValidUntil,
			"product_ids":    ids,
		})
		if err != nil {
			return false, fmt.Errorf("%w: %s", domain.ErrInvalidFilter, err)
		}
		matched, ok := out.Value().(bool)
		if !ok {
			return false, fmt.Errorf("%w: non-bool result %T", domain.ErrInvalidFilter, out.Value())
		}
		return matched, nil
	}, nil
}
