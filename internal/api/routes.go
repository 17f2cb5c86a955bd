package api

import (
	"github.com/gin-gonic/gin"

	"academyCards/internal/api/middleware"
)

// Handlers 汇总 RegisterRoutes 需要的全部处理器。
type Handlers struct {
	Templates *TemplateHandler
	Cards     *CardHandler
	Print     *PrintHandler
	Assets    *AssetHandler
	People    *PeopleHandler
	Ws        *WsHandler
}

// RegisterRoutes 注册 API 路由。/v1 下的端点按静态角色权限分组，/internal 只接受内部密钥。
func RegisterRoutes(router *gin.Engine, h Handlers, internalSecret string) {
	v1 := router.Group("/v1")
	v1.Use(middleware.RoleMiddleware())
	{
		v1.GET("/ws", h.Ws.HandleConnection)

		canView := middleware.RequirePermission(middleware.PermView)
		canDesign := middleware.RequirePermission(middleware.PermDesign)
		canPrint := middleware.RequirePermission(middleware.PermPrint)

		v1.GET("/vocabulary", canView, h.Templates.GetVocabulary)

		templateGroup := v1.Group("/templates")
		{
			templateGroup.GET("", canView, h.Templates.ListTemplates)
			templateGroup.POST("", canDesign, h.Templates.CreateTemplate)
			templateGroup.GET("/last-edited", canView, h.Templates.GetLastEdited)
			templateGroup.GET("/:id", canView, h.Templates.GetTemplate)
			templateGroup.PUT("/:id", canDesign, h.Templates.PutTemplate)
			templateGroup.DELETE("/:id", canDesign, h.Templates.DeleteTemplate)
			templateGroup.GET("/:id/available-fields", canDesign, h.Templates.GetAvailableFields)
			templateGroup.PATCH("/:id/name", canDesign, h.Templates.RenameTemplate)
			templateGroup.PATCH("/:id/background", canDesign, h.Templates.UpdateBackground)
			templateGroup.POST("/:id/fields", canDesign, h.Templates.AddField)
			templateGroup.DELETE("/:id/fields/:fieldId", canDesign, h.Templates.RemoveField)
			templateGroup.PATCH("/:id/fields/:fieldId/style", canDesign, h.Templates.UpdateFieldStyle)
			templateGroup.PATCH("/:id/fields/:fieldId/size", canDesign, h.Templates.ResizeField)
			templateGroup.POST("/:id/fields/:fieldId/drag", canDesign, h.Templates.DragField)
		}

		cardGroup := v1.Group("/cards")
		{
			cardGroup.GET("/render", canView, h.Cards.RenderCard)
			cardGroup.GET("/png", canView, h.Cards.RenderPNG)
			cardGroup.POST("/verify", canView, h.Cards.VerifyCard)
			cardGroup.POST("/export", canPrint, h.Cards.ExportCard)
		}

		printGroup := v1.Group("/print")
		printGroup.Use(canPrint)
		{
			printGroup.POST("/layout", h.Print.ComputeLayout)
			printGroup.POST("/sheet", h.Print.ComposeSheet)
			printGroup.POST("/sheet/pdf", h.Print.EnqueueSheetPDF)
		}

		assetGroup := v1.Group("/assets")
		{
			assetGroup.GET("", canDesign, h.Assets.ListAssets)
			assetGroup.POST("/upload", canDesign, h.Assets.UploadAsset)
			assetGroup.GET("/view", canView, h.Assets.GetAssetURL)
			assetGroup.DELETE("", canDesign, h.Assets.DeleteAsset)
		}
	}

	internal := router.Group("/internal")
	internal.Use(middleware.InternalSecretMiddleware(internalSecret))
	{
		internal.POST("/people", h.People.ImportPeople)
	}
}
