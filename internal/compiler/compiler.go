// Package compiler turns a rule set into the standalone browser snippet that
// the site template includes. The generated code re-implements the engine
// package's evaluation semantics verbatim; it has no runtime dependencies and
// swallows every exception so a malformed rule can never break page rendering.
package compiler

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/novatv-digital/adexclusion/internal/domain"
)

// EngineVersion is embedded in the generated script header.
const EngineVersion = "2.7"

// scriptRule is the abbreviated on-the-wire form of one rule inside the
// generated snippet. Field order here fixes the JSON key order, which is what
// makes compilation byte-stable for identical input.
type scriptRule struct {
	Name       string                 `json:"n"`
	Conditions []domain.Condition     `json:"c"`
	Logic      domain.LogicalOperator `json:"lo"`
	Selector   string                 `json:"s"`
	Action     domain.ActionType      `json:"a"`
	RespectAds bool                   `json:"rae"`
	CustomJS   string                 `json:"js,omitempty"`
	StartDate  *int64                 `json:"sd,omitempty"`
	EndDate    *int64                 `json:"ed,omitempty"`
}

// Placeholder returns the comment served when an environment has no active
// rules.
func Placeholder(env domain.Environment) string {
	if env == domain.EnvDev {
		return "/* AdExclusion (DEV): No rules found */"
	}
	return "/* AdExclusion: No rules found */"
}

// Compile renders the active subset of rules into a self-contained script.
// Inactive rules are never shipped. Compilation is deterministic: the same
// rule set always produces byte-identical output, so downstream caches can
// deduplicate on content.
func Compile(rules domain.RuleSet, env domain.Environment) (string, error) {
	active := make([]scriptRule, 0, len(rules))
	for _, r := range rules {
		if !r.IsActive {
			continue
		}
		action := r.Action
		if action == "" {
			action = domain.ActionHide
		}
		active = append(active, scriptRule{
			Name:       r.Name,
			Conditions: r.Conditions,
			Logic:      r.LogicalOperator,
			Selector:   r.TargetElementSelector,
			Action:     action,
			RespectAds: r.RespectAdsEnabled,
			CustomJS:   r.CustomJS,
			StartDate:  r.StartDate,
			EndDate:    r.EndDate,
		})
	}

	if len(active) == 0 {
		return Placeholder(env), nil
	}

	configJSON, err := json.Marshal(active)
	if err != nil {
		return "", domain.NewAppErrorWithCause(domain.ErrInternal,
			"failed to serialize rule configuration", 500, err, nil)
	}

	return renderScript(string(configJSON), env), nil
}

// renderScript assembles the snippet around the embedded configuration.
//
// The emitted runtime mirrors engine.EvaluateCondition / engine.Matches:
//   - scheduling window re-checked at load time against the browser clock
//     (pages are cached and may be served long after compile time)
//   - respect-ads gate before any condition
//   - comma-split candidate values, trim always, lowercase unless the
//     condition is case sensitive
//   - equals/contains with exact membership on array fields, substring
//     containment only on scalars
//   - an empty condition list never matches
//   - custom code runs in an isolated function scope with (ctx, selector),
//     deferred to DOMContentLoaded while the document is still loading,
//     failures discarded
//
// The whole body sits inside try/catch: a host page without targeting data,
// or a rule that explodes at runtime, must be a silent no-op.
func renderScript(configJSON string, env domain.Environment) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("/** AdExclusion Engine v%s [%s] **/ ", EngineVersion, strings.ToUpper(string(env))))
	b.WriteString("!function(){try{")
	b.WriteString("const rules=")
	b.WriteString(configJSON)
	b.WriteString(",targeting=page_meta?.third_party_apps?.ntAds?.targeting;")
	b.WriteString("if(!targeting)return;")
	b.WriteString(`const now=Date.now(),` +
		`inject=(sel,act)=>{const s=document.createElement("style"),disp=act==="show"?"block":"none",vis=act==="show"?"visible":"hidden";s.innerHTML=sel+"{display:"+disp+"!important;visibility:"+vis+"!important;}",document.head.appendChild(s)},` +
		`runJs=(code,ctx,sel)=>{try{new Function("ctx","selector",code)(ctx,sel)}catch(e){}},` +
		`norm=(v,cs)=>{const s=String(v==null?"":v).trim();return cs?s:s.toLowerCase()};`)
	b.WriteString(`rules.forEach(rule=>{` +
		`if(rule.sd&&now<rule.sd)return;` +
		`if(rule.ed&&now>rule.ed)return;` +
		`if(rule.rae&&targeting.ads_enabled!==true)return;` +
		`if(!rule.c||rule.c.length===0)return;` +
		`const res=rule.c.map(cond=>{` +
		`const cs=!!cond.caseSensitive,raw=targeting[cond.targetKey],arr=Array.isArray(raw),` +
		`pvs=arr?raw.map(v=>norm(v,cs)):[norm(raw,cs)],` +
		`rvs=cond.value.split(",").map(v=>norm(v,cs));` +
		`let m=false;` +
		`switch(cond.operator){` +
		`case "equals":m=rvs.some(rv=>pvs.includes(rv));break;` +
		`case "not_equals":m=rvs.every(rv=>!pvs.includes(rv));break;` +
		`case "contains":m=arr?rvs.some(rv=>pvs.includes(rv)):rvs.some(rv=>pvs.some(pv=>pv.indexOf(rv)>-1));break;` +
		`case "not_contains":m=arr?rvs.every(rv=>!pvs.includes(rv)):rvs.every(rv=>pvs.every(pv=>pv.indexOf(rv)===-1));break}` +
		`return m});` +
		`if(rule.lo==="OR"?res.some(r=>r):res.every(r=>r)){` +
		`inject(rule.s,rule.a);` +
		`if(rule.js){const ex=()=>runJs(rule.js,targeting,rule.s);` +
		`if(document.readyState==="loading")document.addEventListener("DOMContentLoaded",ex);else ex()}}})`)
	b.WriteString("}catch(e){}}();")
	return b.String()
}
