package facts

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrValidation 事实数据不符合参数规格
var ErrValidation = errors.New("facts validation failed")

// OptionType 参数类型
type OptionType string

const (
	TypeStr  OptionType = "str"
	TypeInt  OptionType = "int"
	TypeBool OptionType = "bool"
	TypeList OptionType = "list"
	TypeDict OptionType = "dict"
	// TypeRaw 不做类型转换，原样透传
	TypeRaw OptionType = "raw"
)

// Option 单个参数的规格定义
// Type=list 时 Elements 描述元素类型；Elements 或 Type 为 dict 时由 Options 描述子项
type Option struct {
	Type     OptionType
	Elements OptionType
	Required bool
	Default  interface{}
	Choices  []string
	Options  ArgSpec
}

// ArgSpec 参数规格（资源 schema），进程启动时构造一次，之后只读
type ArgSpec map[string]Option

// ValidateConfig 按规格校验并规整配置，返回新的 map，不修改入参
// 规格中存在但入参缺失的键以 nil 占位（或取 Default），后续由 RemoveEmpties 清理
func ValidateConfig(spec ArgSpec, cfg map[string]interface{}) (map[string]interface{}, error) {
	return validateDict(spec, cfg, "")
}

func validateDict(spec ArgSpec, cfg map[string]interface{}, path string) (map[string]interface{}, error) {
	unknown := make([]string, 0)
	for k := range cfg {
		if _, ok := spec[k]; !ok {
			unknown = append(unknown, joinPath(path, k))
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: unsupported parameters: %s", ErrValidation, strings.Join(unknown, ", "))
	}

	out := make(map[string]interface{}, len(spec))
	for k, opt := range spec {
		p := joinPath(path, k)
		v, ok := cfg[k]
		if !ok || v == nil {
			if opt.Required {
				return nil, fmt.Errorf("%w: missing required argument: %s", ErrValidation, p)
			}
			out[k] = opt.Default
			continue
		}
		cv, err := checkType(opt, v, p)
		if err != nil {
			return nil, err
		}
		if len(opt.Choices) > 0 {
			if err := checkChoice(opt.Choices, cv, p); err != nil {
				return nil, err
			}
		}
		out[k] = cv
	}
	return out, nil
}

func checkType(opt Option, v interface{}, path string) (interface{}, error) {
	switch opt.Type {
	case TypeRaw, "":
		return v, nil
	case TypeStr:
		return toStr(v, path)
	case TypeInt:
		return toInt(v, path)
	case TypeBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s: %T cannot be converted to bool", ErrValidation, path, v)
		}
		return b, nil
	case TypeDict:
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: %s: %T cannot be converted to dict", ErrValidation, path, v)
		}
		if opt.Options == nil {
			return m, nil
		}
		return validateDict(opt.Options, m, path)
	case TypeList:
		return toList(opt, v, path)
	default:
		return nil, fmt.Errorf("%w: %s: unknown option type %q", ErrValidation, path, opt.Type)
	}
}

func toStr(v interface{}, path string) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case bool:
		return strconv.FormatBool(t), nil
	}
	return "", fmt.Errorf("%w: %s: %T cannot be converted to str", ErrValidation, path, v)
}

func toInt(v interface{}, path string) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		// JSON 解码后的数字
		if t == math.Trunc(t) {
			return int(t), nil
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: %s: %v cannot be converted to int", ErrValidation, path, v)
}

func toList(opt Option, v interface{}, path string) ([]interface{}, error) {
	var items []interface{}
	switch t := v.(type) {
	case []interface{}:
		items = t
	case []string:
		items = make([]interface{}, 0, len(t))
		for _, s := range t {
			items = append(items, s)
		}
	case []map[string]interface{}:
		items = make([]interface{}, 0, len(t))
		for _, m := range t {
			items = append(items, m)
		}
	case string:
		// 逗号分隔字符串视为列表
		items = make([]interface{}, 0)
		for _, s := range strings.Split(t, ",") {
			items = append(items, s)
		}
	default:
		return nil, fmt.Errorf("%w: %s: %T cannot be converted to list", ErrValidation, path, v)
	}

	if opt.Elements == "" {
		return items, nil
	}
	elem := Option{Type: opt.Elements, Options: opt.Options}
	out := make([]interface{}, 0, len(items))
	for i, it := range items {
		cv, err := checkType(elem, it, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out = append(out, cv)
	}
	return out, nil
}

func checkChoice(choices []string, v interface{}, path string) error {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	for _, c := range choices {
		if s == c {
			return nil
		}
	}
	return fmt.Errorf("%w: %s: value %q is not one of %s", ErrValidation, path, s, strings.Join(choices, ", "))
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}
