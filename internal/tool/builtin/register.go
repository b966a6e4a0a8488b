// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package builtin

import (
	"retail-chatbot/internal/tool/registry"
)

// RegisterAll 把全部内置工具注册到 Registry。检索后端缺失的工具
// 跳过注册，模型自然不会发现它们。
func RegisterAll(reg *registry.Registry, deps Deps) {
	if deps.Products != nil {
		reg.Register(NewSearchProducts(deps.Products))
	}
	if deps.Policies != nil {
		reg.Register(NewPolicySearch(deps.Policies))
	}
	reg.Register(NewStoreLookup(deps.Tools))
	reg.Register(NewProductDetails(deps.Tools))
	if deps.Sessions != nil {
		reg.Register(NewSendOTP(deps.Tools, deps.Sessions))
		reg.Register(NewVerifyOTP(deps.Tools, deps.Sessions))
	}
	if deps.Contacts != nil {
		reg.Register(NewRecordContact(deps.Contacts))
	}
}
