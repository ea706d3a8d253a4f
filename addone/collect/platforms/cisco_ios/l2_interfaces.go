package cisco_ios

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/sshcollectorpro/l2collector/pkg/facts"
	"github.com/sshcollectorpro/l2collector/pkg/logger"
)

// L2InterfacesResource 事实资源名
const L2InterfacesResource = "l2_interfaces"

// GatherCommand 采集二层接口配置所用命令
const GatherCommand = "show running-config | include ^interface|description|switchport"

// ErrMalformedVLAN VLAN 指令取值不是整数
var ErrMalformedVLAN = errors.New("malformed vlan value")

// 配置指令
const (
	dirSwitchportMode = "switchport mode"
	dirAccessVLAN     = "switchport access vlan"
	dirEncapsulation  = "encapsulation"
	dirNativeVLAN     = "native vlan"
	dirAllowedVLAN    = "allowed vlan"
	dirPruningVLAN    = "pruning vlan"
)

// SwitchportMode 声明的 switchport 模式
type SwitchportMode int

const (
	ModeUndeclared SwitchportMode = iota
	ModeAccess
	ModeTrunk
)

func (m SwitchportMode) String() string {
	switch m {
	case ModeAccess:
		return "access"
	case ModeTrunk:
		return "trunk"
	default:
		return "undeclared"
	}
}

// ParseSwitchportMode 读取 "switchport mode"，非 access/trunk（含缺失、dynamic 等）均视为未声明
func ParseSwitchportMode(block string) SwitchportMode {
	v, _ := ParseConfArg(block, dirSwitchportMode)
	switch v {
	case "access":
		return ModeAccess
	case "trunk":
		return ModeTrunk
	default:
		return ModeUndeclared
	}
}

// RenderConfig 将单个接口配置块渲染为二层事实
// 非以太网族/聚合口返回 (nil, nil)；VLAN 取值非法时返回 ErrMalformedVLAN
func RenderConfig(block string) (*L2Interface, error) {
	intf := headerToken(block)
	if intf == "" || GetInterfaceType(intf) == UnknownInterfaceType || !IsL2Interface(intf) {
		return nil, nil
	}

	out := &L2Interface{Name: NormalizeInterface(intf)}
	if !hasSwitchport(block) {
		return out, nil
	}

	var err error
	switch ParseSwitchportMode(block) {
	case ModeAccess:
		err = renderAccess(out, block)
	case ModeTrunk:
		err = renderTrunk(out, block)
	default:
		err = renderUndeclared(out, block)
	}
	if err != nil {
		return nil, err
	}
	if out.Trunk.IsEmpty() {
		out.Trunk = nil
	}
	return out, nil
}

// renderAccess access 模式：未配置 access vlan 时默认 VLAN 1
func renderAccess(out *L2Interface, block string) error {
	out.Access = &AccessConfig{VLAN: 1}
	if v, ok := ParseConfArg(block, dirAccessVLAN); ok {
		vlan, err := parseVLAN(out.Name, dirAccessVLAN, v)
		if err != nil {
			return err
		}
		out.Access.VLAN = vlan
	}
	return nil
}

// renderTrunk trunk 模式
func renderTrunk(out *L2Interface, block string) error {
	trunk := &TrunkConfig{}
	trunk.Encapsulation, _ = ParseConfArg(block, dirEncapsulation)
	if err := renderTrunkVLANs(out.Name, trunk, block); err != nil {
		return err
	}
	out.Trunk = trunk
	return nil
}

// renderUndeclared 未声明模式：同时尝试 access 与 trunk 属性
// access vlan 仅在显式配置时填充；trunk 的 VLAN 属性仅在没有 access vlan 时填充
func renderUndeclared(out *L2Interface, block string) error {
	trunk := &TrunkConfig{}
	v, hasAccess := ParseConfArg(block, dirAccessVLAN)
	if hasAccess {
		vlan, err := parseVLAN(out.Name, dirAccessVLAN, v)
		if err != nil {
			return err
		}
		out.Access = &AccessConfig{VLAN: vlan}
	}
	trunk.Encapsulation, _ = ParseConfArg(block, dirEncapsulation)
	if !hasAccess {
		if err := renderTrunkVLANs(out.Name, trunk, block); err != nil {
			return err
		}
	}
	out.Trunk = trunk
	return nil
}

// renderTrunkVLANs 填充 native/allowed/pruning；allowed 缺失时为 "all"
func renderTrunkVLANs(name string, trunk *TrunkConfig, block string) error {
	if v, ok := ParseConfArg(block, dirNativeVLAN); ok {
		vlan, err := parseVLAN(name, dirNativeVLAN, v)
		if err != nil {
			return err
		}
		trunk.NativeVLAN = &vlan
	}
	if v, ok := ParseConfArg(block, dirAllowedVLAN); ok {
		trunk.AllowedVLANs = &AllowedVLANs{VLANs: splitVLANList(v)}
	} else {
		trunk.AllowedVLANs = AllowAll()
	}
	if v, ok := ParseConfArg(block, dirPruningVLAN); ok {
		trunk.PruningVLANs = splitVLANList(v)
	}
	return nil
}

func parseVLAN(intf, directive, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %s %q", ErrMalformedVLAN, intf, directive, value)
	}
	return n, nil
}

// L2InterfacesFacts 二层接口事实采集器
type L2InterfacesFacts struct {
	argSpec facts.ArgSpec
}

// NewL2InterfacesFacts 使用给定（只读）参数规格创建采集器；spec 为 nil 时使用内置规格
func NewL2InterfacesFacts(spec facts.ArgSpec) *L2InterfacesFacts {
	if spec == nil {
		spec = L2InterfacesArgSpec
	}
	return &L2InterfacesFacts{argSpec: spec}
}

// ParseInterfaces 切分并渲染全部接口，按出现顺序返回（不去重）
func (f *L2InterfacesFacts) ParseInterfaces(data string) ([]*L2Interface, error) {
	out := make([]*L2Interface, 0)
	for _, block := range SplitConfig(data) {
		obj, err := RenderConfig(block)
		if err != nil {
			return nil, err
		}
		if obj == nil {
			logger.WithField("header", headerToken(block)).Debug("l2_interfaces: skip non-L2 interface")
			continue
		}
		out = append(out, obj)
	}
	return out, nil
}

// Assemble 生成经过校验与空值裁剪的事实列表；没有可渲染接口时返回 nil
func (f *L2InterfacesFacts) Assemble(data string) ([]map[string]interface{}, error) {
	objs, err := f.ParseInterfaces(data)
	if err != nil {
		return nil, err
	}
	if len(objs) == 0 {
		return nil, nil
	}

	cfg := make([]interface{}, 0, len(objs))
	for _, o := range objs {
		cfg = append(cfg, o.ToMap())
	}
	params, err := facts.ValidateConfig(f.argSpec, map[string]interface{}{"config": cfg})
	if err != nil {
		return nil, err
	}
	validated, _ := params["config"].([]interface{})
	out := make([]map[string]interface{}, 0, len(validated))
	for _, item := range validated {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, facts.RemoveEmpties(m))
	}
	return out, nil
}

// PopulateFacts 采集并合并二层接口事实；data 为空时通过连接执行 GatherCommand
// 没有任何接口时不写入资源键
func (f *L2InterfacesFacts) PopulateFacts(ctx context.Context, conn facts.Connection, out *facts.Facts, data string) error {
	if data == "" {
		if conn == nil {
			return fmt.Errorf("l2_interfaces: no data and no connection")
		}
		raw, err := conn.Get(ctx, GatherCommand)
		if err != nil {
			return fmt.Errorf("l2_interfaces: gather config: %w", err)
		}
		data = raw
	}

	objs, err := f.Assemble(data)
	if err != nil {
		return err
	}
	if objs == nil {
		logger.Debug("l2_interfaces: no L2 interfaces found")
		return nil
	}
	out.Update(L2InterfacesResource, objs)
	logger.WithFields(logrus.Fields{"resource": L2InterfacesResource, "count": len(objs)}).Debug("facts populated")
	return nil
}
