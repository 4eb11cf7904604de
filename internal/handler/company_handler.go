package handler

import (
	"hustconnect/internal/service"
	"hustconnect/pkg/jwt"
	"hustconnect/pkg/response"

	"github.com/gin-gonic/gin"
)

type CompanyHandler struct {
	companies *service.CompanyService
	relations *service.RelationshipService
}

func NewCompanyHandler(companies *service.CompanyService, relations *service.RelationshipService) *CompanyHandler {
	return &CompanyHandler{companies: companies, relations: relations}
}

// Create 创建公司主页（HR/管理员）
// @Summary 创建公司
// @Tags 公司
// @Accept json
// @Produce json
// @Success 201 {object} response.Response{data=service.CompanyView}
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/companies [post]
func (h *CompanyHandler) Create(c *gin.Context) {
	type req struct {
		Name        string `json:"name" binding:"required,notblank,max=200"`
		Description string `json:"description"`
		Logo        string `json:"logo" binding:"omitempty,url"`
		Website     string `json:"website" binding:"omitempty,url"`
		Industry    string `json:"industry" binding:"max=100"`
		Size        string `json:"size" binding:"max=50"`
		Location    string `json:"location" binding:"max=200"`
	}
	var r req
	if err := bindJSON(c, &r); err != nil {
		response.FromError(c, err)
		return
	}
	view, err := h.companies.Create(c.Request.Context(), jwt.GetUserID(c), service.CreateCompanyInput{
		Name:        r.Name,
		Description: r.Description,
		Logo:        r.Logo,
		Website:     r.Website,
		Industry:    r.Industry,
		Size:        r.Size,
		Location:    r.Location,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "公司创建成功", view)
}

// MyCompany 当前用户所属公司
func (h *CompanyHandler) MyCompany(c *gin.Context) {
	view, err := h.companies.MyCompany(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, view)
}

// Members 同公司的 HR 成员
func (h *CompanyHandler) Members(c *gin.Context) {
	members, err := h.companies.Members(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, members)
}

// Get 公司详情，附带关注数和当前用户关注状态
func (h *CompanyHandler) Get(c *gin.Context) {
	companyID, err := paramID(c, "company_id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	view, err := h.companies.Get(c.Request.Context(), jwt.GetUserID(c), companyID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, view)
}

// ToggleFollow 关注/取消关注
// @Summary 切换公司关注状态
// @Tags 公司
// @Param company_id path int true "公司ID"
// @Success 200 {object} response.Response{data=service.FollowState}
// @Router /api/v1/companies/{company_id}/follow [post]
func (h *CompanyHandler) ToggleFollow(c *gin.Context) {
	companyID, err := paramID(c, "company_id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	state, err := h.relations.ToggleFollow(c.Request.Context(), jwt.GetUserID(c), companyID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	msg := "已取消关注"
	if state.Following {
		msg = "关注成功"
	}
	response.SuccessWithMessage(c, msg, state)
}

func (h *CompanyHandler) Followers(c *gin.Context) {
	companyID, err := paramID(c, "company_id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	list, err := h.relations.ListFollowers(c.Request.Context(), companyID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, list)
}

// RequestJoin 申请加入公司（HR/管理员）
func (h *CompanyHandler) RequestJoin(c *gin.Context) {
	type req struct {
		Message string `json:"message" binding:"max=500"`
	}
	companyID, err := paramID(c, "company_id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	var r req
	// 请求体可省略
	if c.Request.ContentLength != 0 {
		if err := bindJSON(c, &r); err != nil {
			response.FromError(c, err)
			return
		}
	}
	view, err := h.relations.RequestCompanyJoin(c.Request.Context(), jwt.GetUserID(c), companyID, r.Message)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "加入申请已提交", view)
}

// MyJoinRequest 当前用户待审核的加入申请
func (h *CompanyHandler) MyJoinRequest(c *gin.Context) {
	view, err := h.relations.GetMyJoinRequest(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, view)
}

func (h *CompanyHandler) CancelJoinRequest(c *gin.Context) {
	if err := h.relations.CancelJoinRequest(c.Request.Context(), jwt.GetUserID(c)); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "加入申请已撤回", nil)
}

// JoinRequests 公司管理员查看加入申请，status 缺省为 pending
func (h *CompanyHandler) JoinRequests(c *gin.Context) {
	list, err := h.relations.ListJoinRequests(c.Request.Context(), jwt.GetUserID(c), c.Query("status"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, list)
}

// ReviewJoinRequest 公司管理员审批加入申请
func (h *CompanyHandler) ReviewJoinRequest(c *gin.Context) {
	type req struct {
		Action string `json:"action" binding:"required,oneof=approve reject"`
	}
	requestID, err := paramID(c, "request_id")
	if err != nil {
		response.FromError(c, err)
		return
	}
	var r req
	if err := bindJSON(c, &r); err != nil {
		response.FromError(c, err)
		return
	}
	view, err := h.relations.ReviewCompanyJoin(c.Request.Context(), jwt.GetUserID(c), requestID, r.Action)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, view)
}
