package auth

import "net/http"

// Modules group permissions by the board resource they guard.
const (
	ModuleCompanies   = "COMPANIES"
	ModuleJobs        = "JOBS"
	ModulePermissions = "PERMISSIONS"
	ModuleResumes     = "RESUMES"
	ModuleRoles       = "ROLES"
	ModuleSkills      = "SKILLS"
	ModuleUsers       = "USERS"
)

func crud(module, resource string) []Permission {
	base := "/v1/" + resource
	return []Permission{
		{Name: module + "_LIST", APIPath: base, Method: http.MethodGet, Module: module},
		{Name: module + "_CREATE", APIPath: base, Method: http.MethodPost, Module: module},
		{Name: module + "_UPDATE", APIPath: base + "/{id}", Method: http.MethodPut, Module: module},
		{Name: module + "_DELETE", APIPath: base + "/{id}", Method: http.MethodDelete, Module: module},
	}
}

// BuiltinPermissions is the seed catalog: one list/create/update/delete
// permission per module. PermissionStore.Ensure upserts these at startup;
// administrators may add rows beyond the seed set.
var BuiltinPermissions = buildCatalog()

func buildCatalog() []Permission {
	var perms []Permission
	perms = append(perms, crud(ModuleCompanies, "companies")...)
	perms = append(perms, crud(ModuleJobs, "jobs")...)
	perms = append(perms, crud(ModulePermissions, "permissions")...)
	perms = append(perms, crud(ModuleResumes, "resumes")...)
	perms = append(perms, crud(ModuleRoles, "roles")...)
	perms = append(perms, crud(ModuleSkills, "skills")...)
	perms = append(perms, crud(ModuleUsers, "users")...)
	perms = append(perms, Permission{
		Name:    ModuleUsers + "_GET",
		APIPath: "/v1/users/{id}",
		Method:  http.MethodGet,
		Module:  ModuleUsers,
	})
	perms = append(perms, Permission{
		Name:    ModuleRoles + "_GET",
		APIPath: "/v1/roles/{id}",
		Method:  http.MethodGet,
		Module:  ModuleRoles,
	})
	return perms
}
