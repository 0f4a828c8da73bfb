// @title           card-runner API
// @version         1.0
// @description     Business card directory. Publishers post cards; users browse and favorite them.
// @BasePath        /api
// @securityDefinitions.apikey AuthToken
// @in              header
// @name            x-auth-token
// @description     Identity token from POST /api/auth. "Authorization: Bearer <token>" is also accepted.
package api
