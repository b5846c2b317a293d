package repository

import (
	"context"

	"gorm.io/gorm"

	"bytecopied/backend/internal/model"
)

// CourseRepository 课程数据访问接口
// 课程与上课时段同生共灭：写操作在事务内整体替换时段
type CourseRepository interface {
	Create(ctx context.Context, course *model.Course) error
	// BatchCreate 单事务批量创建课程（ICS 导入）
	BatchCreate(ctx context.Context, courses []model.Course) error
	GetByID(ctx context.Context, id string) (*model.Course, error)
	ListByOwner(ctx context.Context, userID string) ([]model.Course, error)
	// ExistsByCodeAndSection 查询同一用户下是否已有该课程代码 + 班级，excludeID 非空时排除自身
	ExistsByCodeAndSection(ctx context.Context, userID, code, section, excludeID string) (bool, error)
	// Update 更新课程字段并全量替换上课时段
	Update(ctx context.Context, course *model.Course) error
	Delete(ctx context.Context, id string) error
}

type courseRepo struct {
	db *gorm.DB
}

// NewCourseRepo 创建 CourseRepository 实例
func NewCourseRepo(db *gorm.DB) CourseRepository {
	return &courseRepo{db: db}
}

func (r *courseRepo) Create(ctx context.Context, course *model.Course) error {
	// 关联的 Timings 由 GORM 一并写入
	return r.db.WithContext(ctx).Create(course).Error
}

func (r *courseRepo) BatchCreate(ctx context.Context, courses []model.Course) error {
	if len(courses) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&courses).Error
	})
}

func (r *courseRepo) GetByID(ctx context.Context, id string) (*model.Course, error) {
	var course model.Course
	err := r.db.WithContext(ctx).
		Preload("Timings", orderTimings).
		Where("course_id = ?", id).
		First(&course).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *courseRepo) ListByOwner(ctx context.Context, userID string) ([]model.Course, error) {
	var courses []model.Course
	err := r.db.WithContext(ctx).
		Preload("Timings", orderTimings).
		Where("created_by = ?", userID).
		Order("course_code ASC, section ASC").
		Find(&courses).Error
	return courses, err
}

func (r *courseRepo) ExistsByCodeAndSection(ctx context.Context, userID, code, section, excludeID string) (bool, error) {
	q := r.db.WithContext(ctx).
		Model(&model.Course{}).
		Where("created_by = ? AND course_code = ? AND section = ?", userID, code, section)
	if excludeID != "" {
		q = q.Where("course_id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *courseRepo) Update(ctx context.Context, course *model.Course) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Course{}).
			Where("course_id = ?", course.CourseID).
			Updates(map[string]interface{}{
				"course_code": course.CourseCode,
				"course_name": course.CourseName,
				"section":     course.Section,
				"color":       course.Color,
				"updated_at":  gorm.Expr("CURRENT_TIMESTAMP"),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		// 硬删除旧时段后重建，时段无独立审计需求
		if err := tx.Where("course_id = ?", course.CourseID).
			Delete(&model.CourseTiming{}).Error; err != nil {
			return err
		}
		if len(course.Timings) == 0 {
			return nil
		}
		for i := range course.Timings {
			course.Timings[i].CourseID = course.CourseID
			course.Timings[i].TimingID = ""
		}
		return tx.Create(&course.Timings).Error
	})
}

func (r *courseRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("course_id = ?", id).
			Delete(&model.CourseTiming{}).Error; err != nil {
			return err
		}
		result := tx.Where("course_id = ?", id).Delete(&model.Course{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func orderTimings(db *gorm.DB) *gorm.DB {
	return db.Order("day_of_week ASC, start_time ASC")
}
