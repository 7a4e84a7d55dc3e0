package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/db"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsSave creates or replaces a setting. Gateway credentials live in the payments group.
func SettingsSave(ctx *gin.Context) (*models.Setting, int, error) {
	var body types.CreateSettingRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, err
	}
	setting := models.Setting{
		SettingKey:   body.Key,
		SettingValue: types.JSONBAny{Inner: body.Value},
		Group:        body.Group,
	}
	db := db.GetDb()
	err := db.WithContext(ctx.Request.Context()).Transaction(func(tx *gorm.DB) error {
		return tx.
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "setting_key"}, {Name: "group"}},
				DoUpdates: clause.AssignmentColumns([]string{"setting_value", "updated_at"}),
			}).
			Create(&setting).
			Error
	})
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	return &setting, http.StatusOK, nil
}

func SettingsList(ctx *gin.Context) ([]models.Setting, int, error) {
	var settings []models.Setting
	db := db.GetDb()
	q := db.WithContext(ctx.Request.Context())
	if group := ctx.Query("group"); group != "" {
		q = q.Where(&models.Setting{Group: group})
	}
	if err := q.Order("setting_key").Find(&settings).Error; err != nil {
		return nil, http.StatusInternalServerError, err
	}
	return settings, http.StatusOK, nil
}
