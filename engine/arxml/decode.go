package arxml

import (
	"iter"
	"strings"

	"github.com/Sheetlar/arxml/engine/model"
	"github.com/Sheetlar/arxml/engine/registry"
	"github.com/antchfx/xmlquery"
	"github.com/hashicorp/go-multierror"
)

// decoder walks one document. Values that fail to parse are recorded and the
// field is left at its zero value.
type decoder struct {
	r    *Reader
	s    *model.Session
	file string
	errs *multierror.Error
}

func (d *decoder) fail(ref, field string, err error) {
	pe := &ParseError{File: d.file, Ref: ref, Field: field, Err: err}
	d.errs = multierror.Append(d.errs, pe)
	if !d.r.strict {
		d.r.log.Warn("arxml: malformed value", "file", d.file, "ref", ref, "field", field, "error", err)
	}
}

func (d *decoder) intAt(ref string, n *xmlquery.Node, path ...string) (int, bool) {
	s := textAt(n, path...)
	if s == "" {
		return 0, false
	}
	v, err := parseInt(s)
	if err != nil {
		d.fail(ref, strings.Join(path, "/"), err)
		return 0, false
	}
	return int(v), true
}

func (d *decoder) uintAt(ref string, n *xmlquery.Node, path ...string) (uint64, bool) {
	s := textAt(n, path...)
	if s == "" {
		return 0, false
	}
	v, err := parseUint(s)
	if err != nil {
		d.fail(ref, strings.Join(path, "/"), err)
		return 0, false
	}
	return v, true
}

func (d *decoder) numberAt(ref string, n *xmlquery.Node, path ...string) (float64, bool) {
	s := textAt(n, path...)
	if s == "" {
		return 0, false
	}
	v, err := parseNumber(s)
	if err != nil {
		d.fail(ref, strings.Join(path, "/"), err)
		return 0, false
	}
	return v, true
}

func (d *decoder) boolAt(ref string, n *xmlquery.Node, path ...string) bool {
	s := textAt(n, path...)
	if s == "" {
		return false
	}
	v, err := parseBool(s)
	if err != nil {
		d.fail(ref, strings.Join(path, "/"), err)
	}
	return v
}

func (d *decoder) intPtr(ref string, n *xmlquery.Node, path ...string) *int {
	if v, ok := d.intAt(ref, n, path...); ok {
		return &v
	}
	return nil
}

// element reads the attributes every identifiable element shares.
func element(n *xmlquery.Node) model.Element {
	return model.Element{
		Name:     textAt(n, "SHORT-NAME"),
		Desc:     textAt(n, "DESC", "L-2"),
		Category: textAt(n, "CATEGORY"),
	}
}

// register interns e and reports whether it is the instance now registered
// under ref. Children are only decoded for the first declaration of a ref.
func register[T model.Entity](d *decoder, parent model.Entity, role model.Role, ref string, e T) (T, bool) {
	got := model.Intern(d.s, parent, role, ref, e)
	return got, any(got) == any(e)
}

func (d *decoder) pkg(parent *model.Package, prefix string, n *xmlquery.Node) {
	name := textAt(n, "SHORT-NAME")
	if name == "" {
		d.r.log.Warn("arxml: package without short name", "file", d.file, "parent", prefix)
		return
	}
	ref := prefix + "/" + name
	var owner model.Entity
	if parent != nil {
		owner = parent
	}
	pkg := model.Add(d.s, owner, model.RolePackages, ref, func() *model.Package {
		return &model.Package{Element: element(n)}
	})
	for el := range children(child(n, "ELEMENTS")) {
		d.element(pkg, ref, el)
	}
	for sub := range children(child(n, "AR-PACKAGES"), "AR-PACKAGE") {
		d.pkg(pkg, ref, sub)
	}
}

// element decodes one package element by tag. Unknown tags are skipped.
func (d *decoder) element(pkg *model.Package, prefix string, n *xmlquery.Node) {
	name := textAt(n, "SHORT-NAME")
	if name == "" {
		return
	}
	ref := prefix + "/" + name
	switch n.Data {
	case "SYSTEM":
		d.system(pkg, ref, n)
	case "ECU-INSTANCE":
		d.ecu(pkg, ref, n)
	case "CAN-CLUSTER":
		d.canCluster(pkg, ref, n)
	case "FLEXRAY-CLUSTER", "ETHERNET-CLUSTER", "LIN-CLUSTER", "TTCAN-CLUSTER":
		register(d, pkg, model.RoleElements, ref, &model.OtherCluster{
			Element: element(n),
			Bus:     strings.TrimSuffix(n.Data, "-CLUSTER"),
		})
	case "CAN-FRAME":
		d.frame(pkg, ref, n)
	case "I-SIGNAL-I-PDU":
		d.ipdu(pkg, ref, n)
	case "I-SIGNAL":
		d.isignal(pkg, ref, n)
	case "SYSTEM-SIGNAL":
		register(d, pkg, model.RoleElements, ref, &model.SystemSignal{
			Element:       element(n),
			Dynamic:       d.boolAt(ref, n, "DYNAMIC-LENGTH"),
			PhysicalProps: dataDefProps(child(n, "PHYSICAL-PROPS")),
		})
	case "SW-BASE-TYPE":
		size, _ := d.intAt(ref, n, "BASE-TYPE-SIZE")
		register(d, pkg, model.RoleElements, ref, &model.SwBaseType{
			Element:           element(n),
			Size:              size,
			Encoding:          textAt(n, "BASE-TYPE-ENCODING"),
			NativeDeclaration: textAt(n, "NATIVE-DECLARATION"),
		})
	case "COMPU-METHOD":
		d.compuMethod(pkg, ref, n)
	case "UNIT":
		register(d, pkg, model.RoleElements, ref, &model.Unit{
			Element:     element(n),
			DisplayName: textAt(n, "DISPLAY-NAME"),
		})
	default:
		d.r.log.Debug("arxml: element skipped", "tag", n.Data, "ref", ref)
	}
}

func (d *decoder) system(pkg *model.Package, ref string, n *xmlquery.Node) {
	sys, fresh := register(d, pkg, model.RoleElements, ref, &model.System{
		Element:          element(n),
		FibexElementRefs: refsAt(n, "FIBEX-ELEMENT-REF", "FIBEX-ELEMENTS"),
	})
	if !fresh {
		return
	}
	for m := range children(child(n, "MAPPINGS"), "SYSTEM-MAPPING") {
		if name := textAt(m, "SHORT-NAME"); name != "" {
			register(d, sys, model.RoleMappings, ref+"/"+name, &model.SystemMapping{Element: element(m)})
		}
	}
}

func (d *decoder) ecu(pkg *model.Package, ref string, n *xmlquery.Node) {
	ecu, fresh := register(d, pkg, model.RoleElements, ref, &model.EcuInstance{
		Element:                element(n),
		DiagnosticAddress:      d.intPtr(ref, n, "DIAGNOSTIC-ADDRESS"),
		SleepModeSupported:     d.boolAt(ref, n, "SLEEP-MODE-SUPPORTED"),
		WakeUpOverBusSupported: d.boolAt(ref, n, "WAKE-UP-OVER-BUS-SUPPORTED"),
	})
	if !fresh {
		return
	}
	for c := range children(child(n, "COMM-CONTROLLERS")) {
		name := textAt(c, "SHORT-NAME")
		if name == "" || !strings.HasSuffix(c.Data, "-COMMUNICATION-CONTROLLER") {
			continue
		}
		cref := ref + "/" + name
		register(d, ecu, model.RoleControllers, cref, &model.CommunicationController{
			Element:                     element(c),
			WakeUpByControllerSupported: d.boolAt(cref, c, "WAKE-UP-BY-CONTROLLER-SUPPORTED"),
		})
	}
	for c := range children(child(n, "CONNECTORS")) {
		name := textAt(c, "SHORT-NAME")
		if name == "" || !strings.HasSuffix(c.Data, "-COMMUNICATION-CONNECTOR") {
			continue
		}
		d.connector(ecu, ref+"/"+name, c)
	}
}

var portKinds = map[string]model.PortKind{
	"FRAME-PORT":    model.FramePort,
	"I-PDU-PORT":    model.IPduPort,
	"I-SIGNAL-PORT": model.ISignalPort,
}

func (d *decoder) connector(ecu *model.EcuInstance, ref string, n *xmlquery.Node) {
	conn, fresh := register(d, ecu, model.RoleConnectors, ref, &model.CommunicationConnector{
		Element:       element(n),
		ControllerRef: textAt(n, "COMM-CONTROLLER-REF"),
	})
	if !fresh {
		return
	}
	for p := range children(child(n, "ECU-COMM-PORT-INSTANCES"), "FRAME-PORT", "I-PDU-PORT", "I-SIGNAL-PORT") {
		name := textAt(p, "SHORT-NAME")
		if name == "" {
			continue
		}
		register(d, conn, model.RolePorts, ref+"/"+name, &model.CommPort{
			Element:   element(p),
			Port:      portKinds[p.Data],
			Direction: model.Direction(strings.ToUpper(textAt(p, "COMMUNICATION-DIRECTION"))),
		})
	}
}

func (d *decoder) canCluster(pkg *model.Package, ref string, n *xmlquery.Node) {
	var conds []*model.CanClusterConditional
	var channelNodes [][]*xmlquery.Node
	for c := range children(child(n, "CAN-CLUSTER-VARIANTS"), "CAN-CLUSTER-CONDITIONAL") {
		baud, _ := d.uintAt(ref, c, "BAUDRATE")
		fd, _ := d.uintAt(ref, c, "CAN-FD-BAUDRATE")
		conds = append(conds, &model.CanClusterConditional{
			Baudrate:        baud,
			CanFdBaudrate:   fd,
			ProtocolName:    textAt(c, "PROTOCOL-NAME"),
			ProtocolVersion: textAt(c, "PROTOCOL-VERSION"),
		})
		var chs []*xmlquery.Node
		for ch := range children(child(c, "PHYSICAL-CHANNELS"), "CAN-PHYSICAL-CHANNEL") {
			chs = append(chs, ch)
		}
		channelNodes = append(channelNodes, chs)
	}

	cluster, fresh := register(d, pkg, model.RoleElements, ref, &model.CanCluster{
		Element:  element(n),
		Variants: model.VariantsOf(conds...),
	})
	if !fresh {
		return
	}
	for i, cond := range conds {
		for _, ch := range channelNodes[i] {
			if h := d.channel(cluster, ref, ch); h.Valid() {
				cond.Channels = append(cond.Channels, h)
			}
		}
	}
}

func (d *decoder) channel(cluster *model.CanCluster, prefix string, n *xmlquery.Node) registry.Handle {
	name := textAt(n, "SHORT-NAME")
	if name == "" {
		return registry.None
	}
	ref := prefix + "/" + name
	ch, fresh := register(d, cluster, model.RoleChannels, ref, &model.CanPhysicalChannel{
		Element:           element(n),
		CommConnectorRefs: refsAt(n, "COMMUNICATION-CONNECTOR-REF", "COMM-CONNECTORS"),
	})
	if !fresh {
		return ch.Handle()
	}
	for ft := range children(child(n, "FRAME-TRIGGERINGS"), "CAN-FRAME-TRIGGERING") {
		name := textAt(ft, "SHORT-NAME")
		if name == "" {
			continue
		}
		fref := ref + "/" + name
		t := &model.CanFrameTriggering{
			Element:           element(ft),
			AddressingMode:    textAt(ft, "CAN-ADDRESSING-MODE"),
			RxBehavior:        textAt(ft, "CAN-FRAME-RX-BEHAVIOR"),
			TxBehavior:        textAt(ft, "CAN-FRAME-TX-BEHAVIOR"),
			FrameRef:          textAt(ft, "FRAME-REF"),
			FramePortRefs:     refsAt(ft, "FRAME-PORT-REF", "FRAME-PORT-REFS"),
			PduTriggeringRefs: refsAt(ft, "PDU-TRIGGERING-REF", "PDU-TRIGGERINGS"),
		}
		if id, ok := d.uintAt(fref, ft, "IDENTIFIER"); ok {
			if id > 1<<29-1 {
				d.fail(fref, "IDENTIFIER", errIdentifierRange)
			} else {
				v := uint32(id)
				t.Identifier = &v
			}
		}
		register(d, ch, model.RoleFrameTriggerings, fref, t)
	}
	for pt := range children(child(n, "PDU-TRIGGERINGS"), "PDU-TRIGGERING") {
		name := textAt(pt, "SHORT-NAME")
		if name == "" {
			continue
		}
		register(d, ch, model.RolePduTriggerings, ref+"/"+name, &model.PduTriggering{
			Element:  element(pt),
			IPduRef:  textAt(pt, "I-PDU-REF"),
			PortRefs: refsAt(pt, "I-PDU-PORT-REF", "I-PDU-PORT-REFS"),
		})
	}
	return ch.Handle()
}

func (d *decoder) frame(pkg *model.Package, ref string, n *xmlquery.Node) {
	length, _ := d.intAt(ref, n, "FRAME-LENGTH")
	f := &model.CanFrame{Element: element(n), Length: length}
	for m := range children(child(n, "PDU-TO-FRAME-MAPPINGS"), "PDU-TO-FRAME-MAPPING") {
		start, _ := d.intAt(ref, m, "START-POSITION")
		f.PduMappings = append(f.PduMappings, model.PduToFrameMapping{
			Name:          textAt(m, "SHORT-NAME"),
			PduRef:        textAt(m, "PDU-REF"),
			ByteOrder:     model.ByteOrder(textAt(m, "PACKING-BYTE-ORDER")),
			StartPosition: start,
			UpdateBit:     d.intPtr(ref, m, "UPDATE-INDICATION-BIT-POSITION"),
		})
	}
	register(d, pkg, model.RoleElements, ref, f)
}

func (d *decoder) ipdu(pkg *model.Package, ref string, n *xmlquery.Node) {
	length, _ := d.intAt(ref, n, "LENGTH")
	p := &model.ISignalIPdu{Element: element(n), Length: length}
	for m := range children(child(n, "I-SIGNAL-TO-PDU-MAPPINGS"), "I-SIGNAL-TO-I-PDU-MAPPING") {
		start, _ := d.intAt(ref, m, "START-POSITION")
		p.SignalMappings = append(p.SignalMappings, model.SignalToPduMapping{
			Name:          textAt(m, "SHORT-NAME"),
			SignalRef:     textAt(m, "I-SIGNAL-REF"),
			ByteOrder:     model.ByteOrder(textAt(m, "PACKING-BYTE-ORDER")),
			StartPosition: start,
			UpdateBit:     d.intPtr(ref, m, "UPDATE-INDICATION-BIT-POSITION"),
		})
	}
	register(d, pkg, model.RoleElements, ref, p)
}

func (d *decoder) isignal(pkg *model.Package, ref string, n *xmlquery.Node) {
	length, _ := d.intAt(ref, n, "LENGTH")
	s := &model.ISignal{
		Element:               element(n),
		SystemSignalRef:       textAt(n, "SYSTEM-SIGNAL-REF"),
		DataTypePolicy:        textAt(n, "DATA-TYPE-POLICY"),
		Length:                length,
		NetworkRepresentation: dataDefProps(child(n, "NETWORK-REPRESENTATION-PROPS")),
	}
	if v, ok := d.numberAt(ref, n, "INIT-VALUE", "NUMERICAL-VALUE-SPECIFICATION", "VALUE"); ok {
		s.InitValue = &v
	}
	register(d, pkg, model.RoleElements, ref, s)
}

// dataDefProps reads the conditional variants below a *-PROPS element.
func dataDefProps(n *xmlquery.Node) model.Variants[model.SwDataDefProps] {
	conds := children(child(n, "SW-DATA-DEF-PROPS-VARIANTS"), "SW-DATA-DEF-PROPS-CONDITIONAL")
	return model.NewVariants(mapSeq(conds, func(c *xmlquery.Node) model.SwDataDefProps {
		return model.SwDataDefProps{
			BaseTypeRef:    textAt(c, "BASE-TYPE-REF"),
			CompuMethodRef: textAt(c, "COMPU-METHOD-REF"),
			UnitRef:        textAt(c, "UNIT-REF"),
		}
	}))
}

func mapSeq[T, U any](seq iter.Seq[T], f func(T) U) iter.Seq[U] {
	return func(yield func(U) bool) {
		for v := range seq {
			if !yield(f(v)) {
				return
			}
		}
	}
}

func (d *decoder) compuMethod(pkg *model.Package, ref string, n *xmlquery.Node) {
	cm := &model.CompuMethod{Element: element(n), UnitRef: textAt(n, "UNIT-REF")}
	for sc := range children(at(n, "COMPU-INTERNAL-TO-PHYS", "COMPU-SCALES"), "COMPU-SCALE") {
		cm.IntToPhys = append(cm.IntToPhys, d.compuScale(ref, sc))
	}
	register(d, pkg, model.RoleElements, ref, cm)
}

func (d *decoder) compuScale(ref string, n *xmlquery.Node) model.CompuScale {
	sc := model.CompuScale{
		Lower:      d.limit(ref, child(n, "LOWER-LIMIT")),
		Upper:      d.limit(ref, child(n, "UPPER-LIMIT")),
		ShortLabel: textAt(n, "SHORT-LABEL"),
		Symbol:     textAt(n, "SYMBOL"),
	}
	if mask, ok := d.uintAt(ref, n, "MASK"); ok {
		sc.Mask = &mask
	}
	if c := child(n, "COMPU-CONST"); c != nil {
		cc := &model.CompuConst{}
		if vt := child(c, "VT"); vt != nil {
			t := strings.TrimSpace(vt.InnerText())
			cc.Text = &t
		}
		for _, tag := range []string{"V", "VF"} {
			if v, ok := d.numberAt(ref, c, tag); ok {
				cc.Value = &v
				break
			}
		}
		sc.Const = cc
	}
	if rc := child(n, "COMPU-RATIONAL-COEFFS"); rc != nil {
		sc.Rational = &model.RationalCoeffs{
			Numerator:   d.coefficients(ref, child(rc, "COMPU-NUMERATOR")),
			Denominator: d.coefficients(ref, child(rc, "COMPU-DENOMINATOR")),
		}
	}
	return sc
}

func (d *decoder) coefficients(ref string, n *xmlquery.Node) []float64 {
	var out []float64
	for v := range children(n, "V") {
		f, err := parseNumber(strings.TrimSpace(v.InnerText()))
		if err != nil {
			d.fail(ref, n.Data+"/V", err)
			continue
		}
		out = append(out, f)
	}
	return out
}

func (d *decoder) limit(ref string, n *xmlquery.Node) *model.Limit {
	if n == nil {
		return nil
	}
	kind := model.LimitKind(strings.ToUpper(n.SelectAttr("INTERVAL-TYPE")))
	if kind == "" {
		kind = model.LimitClosed
	}
	text := strings.TrimSpace(n.InnerText())
	if kind == model.LimitInfinite || text == "" {
		return &model.Limit{Kind: model.LimitInfinite}
	}
	v, err := parseNumber(text)
	if err != nil {
		d.fail(ref, n.Data, err)
		return nil
	}
	return &model.Limit{Value: v, Kind: kind}
}
